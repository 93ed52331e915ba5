package actions

import "fmt"

// Description is a structured, serializable description of a failure.
// The collection stores it without inspecting its contents.
type Description map[string]interface{}

// Failure contexts passed to ErrorMapper.RunFailed.
const (
	ContextRun                = "run"
	ContextRunListExpand      = "run_list_expand"
	ContextCookbookResolution = "cookbook_resolution"
	ContextCookbookSync       = "cookbook_sync"
)

// ErrorMapper turns failures into structured descriptions.
type ErrorMapper interface {
	// ResourceFailed describes a failed resource action.
	ResourceFailed(resource Resource, action string, err error) Description

	// RunFailed describes a run-level failure in the given context.
	RunFailed(context string, err error) Description
}

// plainMapper is used when no ErrorMapper is configured.
type plainMapper struct{}

func (plainMapper) ResourceFailed(resource Resource, action string, err error) Description {
	return Description{
		"title":   fmt.Sprintf("Error executing action %q on resource %q", action, resource.Identity()),
		"message": errMessage(err),
	}
}

func (plainMapper) RunFailed(context string, err error) Description {
	return Description{
		"title":   fmt.Sprintf("%s failed", context),
		"message": errMessage(err),
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
