package extract

import "fmt"

// PolicyError rejects content that violates a configured limit. Its message
// is shown verbatim to the requester and the request is never retried under
// another strategy, since no credentials change the content itself.
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

// DownloadError is the collaborator's distinguished "download failed"
// condition, separate from errors launching or talking to it.
type DownloadError struct {
	Output string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("download failed: %s", e.Output)
	}
	return fmt.Sprintf("download failed: %v", e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExhaustedError reports that every configured strategy failed. It wraps the
// last attempt's error, which is the most diagnostic one.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d download attempts failed: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
