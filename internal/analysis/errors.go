package analysis

import "fmt"

// EmptyDatasetError is returned when there are no rows to analyze.
type EmptyDatasetError struct {
	Name string
}

func (e *EmptyDatasetError) Error() string {
	if e.Name == "" {
		return "dataset contains no rows"
	}
	return fmt.Sprintf("dataset %q contains no rows", e.Name)
}

// Is lets errors.Is match any EmptyDatasetError against ErrEmptyDataset.
func (e *EmptyDatasetError) Is(target error) bool {
	_, ok := target.(*EmptyDatasetError)
	return ok
}

// ErrEmptyDataset is the sentinel for errors.Is checks.
var ErrEmptyDataset error = &EmptyDatasetError{}
