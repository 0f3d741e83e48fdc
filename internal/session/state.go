package session

// State names one node of the conversation graph. The raw string is what
// gets persisted, so the values are part of the storage format and must not
// be renamed casually.
type State string

const (
	// StateMenu is the resting state for registered users.
	StateMenu State = "menu"

	// Registration flow.
	StateRegName    State = "reg_name"
	StateRegSurname State = "reg_surname"

	// Browsing flow.
	StateQueueList   State = "queue_list"
	StateQueueDetail State = "queue_detail"

	// Admin queue creation flow.
	StateAddName   State = "add_name"
	StateAddStart  State = "add_start"
	StateAddEnd    State = "add_end"
	StateAddNotify State = "add_notify"
)

// knownStates guards against stray rows: an unknown persisted state is
// treated like a fresh menu session.
var knownStates = map[State]bool{
	StateMenu:        true,
	StateRegName:     true,
	StateRegSurname:  true,
	StateQueueList:   true,
	StateQueueDetail: true,
	StateAddName:     true,
	StateAddStart:    true,
	StateAddEnd:      true,
	StateAddNotify:   true,
}

// Form data keys stored in the session Data map.
const (
	dataName    = "name"     // registration: first name
	dataStatus  = "status"   // browsing: status of the listed queues
	dataPage    = "page"     // browsing: current 1-based page
	dataQueueID = "queue_id" // browsing: open queue detail
	dataQName   = "q_name"   // creation: queue name
	dataQStart  = "q_start"  // creation: start, unix seconds
	dataQEnd    = "q_end"    // creation: end, unix seconds
)
