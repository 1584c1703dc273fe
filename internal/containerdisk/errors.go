package containerdisk

// PublishError reports a failed build, push, manifest or inspect step.
type PublishError struct {
	Reason Reason
	Ref    string
	Arch   string
	Err    error
}

func (e *PublishError) Error() string {
	msg := string(e.Reason) + " " + e.Ref
	if e.Arch != "" {
		msg += " [" + e.Arch + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

type Reason string

const (
	ReasonBuildContext Reason = "writing build context failed for"
	ReasonBuild        Reason = "building image failed for"
	ReasonPush         Reason = "pushing image failed for"
	ReasonManifest     Reason = "publishing manifest list failed for"
	ReasonInspect      Reason = "inspecting remote reference failed for"
)
