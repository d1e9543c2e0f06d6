package sqlagent

// OutcomeKind tags an execution Outcome.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	// OutcomeRows is a read that returned at least one row.
	OutcomeRows
	// OutcomeEmpty is a read that returned no rows. It counts as success.
	OutcomeEmpty
	// OutcomeAck is a write or DDL statement that committed.
	OutcomeAck
	// OutcomeError is any failure raised by the store.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRows:
		return "rows"
	case OutcomeEmpty:
		return "empty"
	case OutcomeAck:
		return "ack"
	case OutcomeError:
		return "error"
	default:
		return "none"
	}
}

// AckMessage is the acknowledgement for a successful write.
const AckMessage = "The action has been successfully completed."

// Outcome is the result of executing one statement.
type Outcome struct {
	Kind         OutcomeKind
	Columns      []string
	Rows         []Row
	RowsAffected int64
	// Message holds the error text for OutcomeError and AckMessage for
	// OutcomeAck.
	Message string
	// Truncated is set when a read produced more rows than the executor keeps.
	Truncated bool
}

// Failed reports whether the statement raised.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeError
}

// RowsOutcome builds a read outcome; no rows yields OutcomeEmpty.
func RowsOutcome(columns []string, rows []Row) Outcome {
	if len(rows) == 0 {
		return Outcome{Kind: OutcomeEmpty, Columns: columns}
	}
	return Outcome{Kind: OutcomeRows, Columns: columns, Rows: rows}
}

// AckOutcome builds a committed-write outcome.
func AckOutcome(affected int64) Outcome {
	return Outcome{Kind: OutcomeAck, RowsAffected: affected, Message: AckMessage}
}

// ErrorOutcome captures err as an execution failure.
func ErrorOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeError, Message: err.Error()}
}
