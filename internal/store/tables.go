package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names.
const (
	tableSessions  = "exam_sessions"
	tableQuestions = "session_questions"
	tableAnswers   = "session_answers"
	tableLLMEvents = "llm_request_events"
)

func autoID() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeInt, Increment: true}
}

func sessionsTable() *schema.Table {
	return schema.NewTable(tableSessions).
		AddPrimary(&schema.Column{Name: "id", Type: field.TypeString, Size: 64}).
		AddColumn(&schema.Column{Name: "session_type", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "section", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "track", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "batch_size", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "max_batches", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "last_batch_index", Type: field.TypeInt, Default: -1}).
		AddColumn(&schema.Column{Name: "generated_ids", Type: field.TypeString, Default: "[]"}).
		AddColumn(&schema.Column{Name: "status", Type: field.TypeString, Default: string(StatusActive)}).
		AddColumn(&schema.Column{Name: "created_at", Type: field.TypeTime}).
		AddColumn(&schema.Column{Name: "updated_at", Type: field.TypeTime}).
		AddIndex("examsession_status", false, []string{"status"})
}

func questionsTable() *schema.Table {
	return schema.NewTable(tableQuestions).
		AddPrimary(autoID()).
		AddColumn(&schema.Column{Name: "session_id", Type: field.TypeString, Size: 64}).
		AddColumn(&schema.Column{Name: "question_index", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "batch_index", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "question_id", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "question", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "provider", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "cache_hit", Type: field.TypeBool, Default: false}).
		AddColumn(&schema.Column{Name: "generated_at", Type: field.TypeTime}).
		AddIndex("sessionquestion_session_id_question_index", true, []string{"session_id", "question_index"}).
		AddIndex("sessionquestion_session_id_question_id", true, []string{"session_id", "question_id"}).
		AddIndex("sessionquestion_session_id_batch_index", false, []string{"session_id", "batch_index"})
}

func answersTable() *schema.Table {
	return schema.NewTable(tableAnswers).
		AddPrimary(autoID()).
		AddColumn(&schema.Column{Name: "session_id", Type: field.TypeString, Size: 64}).
		AddColumn(&schema.Column{Name: "question_index", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "question_id", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "chosen_index", Type: field.TypeInt}).
		AddColumn(&schema.Column{Name: "correct", Type: field.TypeBool}).
		AddColumn(&schema.Column{Name: "answered_at", Type: field.TypeTime}).
		AddIndex("sessionanswer_session_id_question_index", true, []string{"session_id", "question_index"})
}

// llmEventsTable carries the event columns shared by all events
// (sequence, timestamp) followed by the LLM call fields.
func llmEventsTable() *schema.Table {
	return schema.NewTable(tableLLMEvents).
		AddPrimary(autoID()).
		AddColumn(&schema.Column{Name: "sequence", Type: field.TypeInt64, Unique: true}).
		AddColumn(&schema.Column{Name: "timestamp", Type: field.TypeTime}).
		AddColumn(&schema.Column{Name: "provider", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "model", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "purpose", Type: field.TypeString}).
		AddColumn(&schema.Column{Name: "session_id", Type: field.TypeString, Default: ""}).
		AddColumn(&schema.Column{Name: "batch_index", Type: field.TypeInt, Default: -1}).
		AddColumn(&schema.Column{Name: "attempt", Type: field.TypeInt, Default: 0}).
		AddColumn(&schema.Column{Name: "input_tokens", Type: field.TypeInt, Default: 0}).
		AddColumn(&schema.Column{Name: "output_tokens", Type: field.TypeInt, Default: 0}).
		AddColumn(&schema.Column{Name: "cache_read_tokens", Type: field.TypeInt, Default: 0}).
		AddColumn(&schema.Column{Name: "cache_creation_tokens", Type: field.TypeInt, Default: 0}).
		AddColumn(&schema.Column{Name: "latency_ms", Type: field.TypeInt64, Default: 0}).
		AddColumn(&schema.Column{Name: "success", Type: field.TypeBool}).
		AddColumn(&schema.Column{Name: "error_message", Type: field.TypeString, Default: ""}).
		AddColumn(&schema.Column{Name: "request_body", Type: field.TypeString, Default: ""}).
		AddColumn(&schema.Column{Name: "response_body", Type: field.TypeString, Default: ""}).
		AddIndex("llmrequestevent_timestamp", false, []string{"timestamp"}).
		AddIndex("llmrequestevent_provider", false, []string{"provider"}).
		AddIndex("llmrequestevent_purpose", false, []string{"purpose"}).
		AddIndex("llmrequestevent_session_id", false, []string{"session_id"})
}

// tables returns every table managed by the store, in creation order.
func tables() []*schema.Table {
	return []*schema.Table{sessionsTable(), questionsTable(), answersTable(), llmEventsTable()}
}
