package config

type WorkerKeyStruct struct {
	PersistAuditQueue         string
	PersistQuestionStatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAuditQueue:         "persist_audit_queue",
	PersistQuestionStatsQueue: "persist_question_stats_queue",
}
