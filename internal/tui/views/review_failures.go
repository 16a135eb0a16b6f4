package views

// ReviewFailures remembers which messages failed their last review and why.
// It is only touched from the UI goroutine.
type ReviewFailures struct {
	errs map[int64]error
}

// NewReviewFailures creates an empty set.
func NewReviewFailures() *ReviewFailures {
	return &ReviewFailures{errs: make(map[int64]error)}
}

// Settle records the outcome of a bulk review: succeeded ids lose their flag,
// failed ids get theirs.
func (rf *ReviewFailures) Settle(succeeded []int64, failed map[int64]error) {
	for _, id := range succeeded {
		delete(rf.errs, id)
	}
	for id, err := range failed {
		rf.errs[id] = err
	}
}

// Reset drops every flag. Called when a new snapshot replaces the view.
func (rf *ReviewFailures) Reset() {
	clear(rf.errs)
}

// Err returns the review error for id, or nil.
func (rf *ReviewFailures) Err(id int64) error {
	return rf.errs[id]
}

// Len returns the number of flagged messages.
func (rf *ReviewFailures) Len() int {
	return len(rf.errs)
}
