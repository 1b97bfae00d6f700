package tool

// Result is returned for every tool call. On a configuration error only
// Error and Message are set.
type Result struct {
	Path         string `json:"path,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
	Markdown     string `json:"markdown,omitempty"`
	Message      string `json:"message"`
	Error        string `json:"error,omitempty"`
}

func (r Result) String() string {
	return r.Message
}

func (r Result) Failed() bool {
	return r.Error != ""
}

func errorResult(err error) Result {
	return Result{
		Message: "Error: " + err.Error(),
		Error:   err.Error(),
	}
}
