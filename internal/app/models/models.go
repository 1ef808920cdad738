package models

// User is a registered account. Identity key is Username; Password holds
// a bcrypt hash, never the raw credential.
type User struct {
	ID       string
	Username string
	Email    string
	Password string
}

// PredictionResult is the outcome of one classification request. Exactly
// one of Label, Notice or Err is meaningful: Label when the model produced
// a severity, Notice when the model is not loaded, Err when preprocessing
// or inference failed. Results are per-request and never persisted.
type PredictionResult struct {
	Label          string
	Notice         string
	Err            string
	SourceImageRef string
}

// Ok reports whether the pipeline produced a severity label.
func (r PredictionResult) Ok() bool {
	return r.Err == "" && r.Notice == ""
}
