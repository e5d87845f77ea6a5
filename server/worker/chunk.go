package worker

// WorkItem is one chunk of one file waiting to be offered
type WorkItem struct {
	File  string
	Index uint32
}
