package domain

const (
	EventNameSessionStarted      = "session.started"
	EventNameSessionSubmitted    = "session.submitted"
	EventNameSessionSubmitFailed = "session.submit_failed"
	EventNameSessionExpired      = "session.expired"
	EventNameSessionClosed       = "session.closed"
)

type EventSessionStarted struct {
	TabID     string
	AttemptID string
	UserID    string
	QuizID    string
	Questions int
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventSessionSubmitted struct {
	TabID   string
	Trigger Trigger
	Record  SubmissionRecord
	Result  Result
}

func (EventSessionSubmitted) Name() string { return EventNameSessionSubmitted }

// EventSessionSubmitFailed leaves the session stalled in submitting until a retry.
type EventSessionSubmitFailed struct {
	TabID   string
	Trigger Trigger
	Record  SubmissionRecord
	Reason  string
}

func (EventSessionSubmitFailed) Name() string { return EventNameSessionSubmitFailed }

// EventSessionExpired is published when the clock reaches zero, before the automatic submission.
type EventSessionExpired struct {
	TabID  string
	QuizID string
}

func (EventSessionExpired) Name() string { return EventNameSessionExpired }

type EventSessionClosed struct {
	TabID  string
	QuizID string
	Status Status
}

func (EventSessionClosed) Name() string { return EventNameSessionClosed }
