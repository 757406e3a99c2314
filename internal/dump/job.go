package dump

// JobKind distinguishes the two kinds of work a worker can pop off the
// queue. A dedicated enum reads better in Go than an interface with two
// implementations, since workers switch on kind rather than dispatch
// through a method.
type JobKind int

const (
	// JobDump instructs a worker to dump one chunk of one table.
	JobDump JobKind = iota
	// JobShutdown instructs a worker to finish and exit. Exactly one is
	// pushed per worker once all dump jobs have been queued.
	JobShutdown
)

// Predicate is the rendered SQL fragment bounding one chunk's rows,
// produced by the planner and spliced into the chunk's SELECT.
type Predicate struct {
	Clause string
}

// Job is a unit of work pulled from the shared queue. Dump jobs carry a
// table name and the predicate (if any) bounding the chunk's rows.
// Chunked is false for a table dumped as a single unchunked job, in which
// case ChunkIdx and Predicate are unused.
type Job struct {
	Kind      JobKind
	Database  string
	Table     string
	Chunked   bool
	ChunkIdx  int
	Predicate Predicate
}
