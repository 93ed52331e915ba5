package telemetry_test

import (
	"context"
	"fmt"

	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

func Example_eventPublishing() {
	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		panic(err)
	}
	defer publisher.Shutdown(context.Background())

	publisher.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = publisher.PublishActionRecorded("run-1", telemetry.ActionRecord{
		Resource: "file[/etc/motd]", Action: "create", Status: "updated",
	})
	_ = publisher.PublishActionRecorded("run-1", telemetry.ActionRecord{
		Resource: "file[/etc/hosts]", Action: "create", Status: "unprocessed",
	})

	// Output:
	// action.recorded file[/etc/hosts] create: unprocessed
}
