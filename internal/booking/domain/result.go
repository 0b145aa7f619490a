package domain

// ResultStatus tells the caller whether a business operation went through
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFail    ResultStatus = "fail"
)

// Result is returned for business outcomes that are not errors, e.g. a job already taken
type Result struct {
	Status  ResultStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Succeeded reports whether the operation went through
func (r Result) Succeeded() bool {
	return r.Status == ResultSuccess
}

// Success builds a success result
func Success(message string) Result {
	return Result{Status: ResultSuccess, Message: message}
}

// Fail builds a fail result
func Fail(message string) Result {
	return Result{Status: ResultFail, Message: message}
}

// AcceptResult is returned by job acceptance
type AcceptResult struct {
	Result
	Job           *Job
	PotentialJobs []Job
}

// UsersJobs is a user's current job list
type UsersJobs struct {
	User          *User
	UserType      Role
	EmergencyJobs []Job
	NormalJobs    []Job
}

// HistoryCursor is the keyset position inside a job history
type HistoryCursor struct {
	Due   int64
	JobID int64
}

// JobHistory is one page of a user's past jobs
type JobHistory struct {
	User       *User
	UserType   Role
	Jobs       []Job
	NextCursor *HistoryCursor
}
