package sqldb

// Text is a row of the texts interning table.
type Text struct {
	ID    int64  `db:"id"`
	Value string `db:"value"`
}

// LabelChange is a row of the labels table. Language holds a texts id for either a
// language code or a site code.
type LabelChange struct {
	Item       int64  `db:"item"`
	Revision   int64  `db:"revision"`
	Type       string `db:"type"`
	Timestamp  string `db:"timestamp"`
	ChangeType string `db:"change_type"`
	Language   int64  `db:"language"`
}

// LabelChangeView is a labels row with its language or site resolved through texts.
type LabelChangeView struct {
	LabelChange
	Key string `db:"key"`
}

// StatementChange is a row of the statements table.
type StatementChange struct {
	Item       int64  `db:"item"`
	Revision   int64  `db:"revision"`
	Property   int64  `db:"property"`
	Timestamp  string `db:"timestamp"`
	ChangeType string `db:"change_type"`
}

// ItemEvent is a row of the creations or deletions table.
type ItemEvent struct {
	Q         int64  `db:"q"`
	Timestamp string `db:"timestamp"`
}

// Redirect is a row of the redirects table.
type Redirect struct {
	Source    int64  `db:"source"`
	Target    int64  `db:"target"`
	Timestamp string `db:"timestamp"`
}

// Meta is a row of the meta table.
type Meta struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}
