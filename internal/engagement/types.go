package engagement

// Kind names a resource class that can be viewed or liked.
type Kind string

const (
	KindPost    Kind = "post"
	KindNotice  Kind = "notice"
	KindEvent   Kind = "event"
	KindComment Kind = "comment"
)

// Action is a tracked engagement action.
type Action string

const (
	ActionView Action = "VIEW"
	ActionLike Action = "LIKE"
)

// Key uniquely identifies one engagement record. At most one record
// exists per key; the denormalized counters must always equal the number
// of matching records.
type Key struct {
	Subject  string
	Kind     Kind
	Resource string
	Action   Action
}

// Counts is the denormalized counter pair kept in sync with ledger
// membership.
type Counts struct {
	Views int
	Likes int
}

// ViewResult reports the outcome of RecordView.
type ViewResult struct {
	Counted bool `json:"counted"`
	Views   int  `json:"views"`
}

// LikeResult reports the outcome of ToggleLike.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
