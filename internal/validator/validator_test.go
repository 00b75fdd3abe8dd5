package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exampool/internal/model"
)

func TestBindCreateExam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name: "valid",
			body: `{"title":"JEE Mock","total_questions":4,"duration_minutes":60,"max_attempts":1,
				"marking_scheme":{"correct_marks":"4","wrong_marks":"-1","unattempted_marks":"0"},
				"difficulty_distribution":{"EASY":50,"HARD":50},
				"subject_distribution":{"Physics":2,"Chemistry":2}}`,
		},
		{
			name:       "missing title",
			body:       `{"total_questions":4,"duration_minutes":60,"max_attempts":1,"difficulty_distribution":{"EASY":100},"subject_distribution":{"Physics":4},"marking_scheme":{"correct_marks":"4"}}`,
			wantFields: []string{"title"},
		},
		{
			name: "distribution rules",
			body: `{"title":"Broken","total_questions":4,"duration_minutes":60,"max_attempts":1,
				"marking_scheme":{"correct_marks":"4"},
				"difficulty_distribution":{"EASY":40},
				"subject_distribution":{"Physics":3}}`,
			wantFields: []string{"difficulty_distribution", "subject_distribution"},
		},
		{
			name:       "malformed json",
			body:       `{"title":`,
			wantFields: []string{"detail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req model.CreateExamRequest
			fields := Bind(c, &req)

			if len(tt.wantFields) == 0 {
				if fields != nil {
					t.Fatalf("Bind() fields = %v, want none", fields)
				}
				return
			}
			for _, f := range tt.wantFields {
				if msg, ok := fields[f]; !ok || msg == "" {
					t.Errorf("missing message for %s in %v", f, fields)
				}
			}
		})
	}
}

func TestStructPutAnswer(t *testing.T) {
	Setup()

	opt := func(s string) *string { return &s }
	tests := []struct {
		name    string
		option  *string
		wantErr bool
	}{
		{name: "cleared", option: nil},
		{name: "letter", option: opt("B")},
		{name: "punctuation", option: opt("A-1"), wantErr: true},
		{name: "too long", option: opt("ABCDEFGHI"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := Struct(&model.PutAnswerRequest{SelectedOption: tt.option})
			if tt.wantErr {
				if _, ok := fields["selected_option"]; !ok {
					t.Fatalf("Struct() fields = %v, want selected_option", fields)
				}
				if msg := FirstMessage(fields); !strings.HasPrefix(msg, "selected_option: ") {
					t.Errorf("FirstMessage() = %q", msg)
				}
				return
			}
			if fields != nil {
				t.Errorf("Struct() fields = %v, want none", fields)
			}
		})
	}
}
