package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/plan"
)

func TestOutputDataJSONTag(t *testing.T) {
	raw, err := json.Marshal(PrimaryDelta("hel"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"primary_delta","content":"hel"}`, string(raw))
}

func TestOutputDataOmitsUnusedFields(t *testing.T) {
	raw, err := json.Marshal(Completed())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"completed"}`, string(raw))
}

func TestErrorPayload(t *testing.T) {
	data := Error(ErrorData{
		Kind:     ErrToolExecutionFailed,
		Message:  "exit status 1",
		ToolName: "shell",
	})

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var round OutputData
	require.NoError(t, json.Unmarshal(raw, &round))
	require.NotNil(t, round.Error)
	assert.Equal(t, ErrToolExecutionFailed, round.Error.Kind)
	assert.Equal(t, "shell", round.Error.ToolName)
}

func TestOutputMessageString(t *testing.T) {
	todo := plan.NewTodoItem("x")

	tests := []struct {
		name string
		msg  OutputMessage
		want string
	}{
		{"start", NewOutputMessage(3, Start()), "[Turn 3] Started"},
		{"primary", NewOutputMessage(1, Primary("hello")), "hello"},
		{"tool start", NewOutputMessage(1, ToolStart("shell", nil)), "[Tool] Starting shell"},
		{"tool output", NewOutputMessage(1, ToolOutput("shell", "ok")), "[shell] ok"},
		{"reasoning", NewOutputMessage(1, Reasoning("because")), "[Reasoning] because"},
		{"todos", NewOutputMessage(1, TodoUpdate([]plan.TodoItem{todo})), "[Plan] 1 todos"},
		{"completed", NewOutputMessage(7, Completed()), "[Turn 7] Completed"},
		{"error", NewOutputMessage(1, Error(GeneralError("boom"))), "[Error] general: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.String())
		})
	}
}

func TestInputMessageImages(t *testing.T) {
	msg := NewInputMessage("describe this")
	msg.AddImage(ImageInput{Data: "aGk=", MimeType: "image/png", Description: "screenshot"})

	require.Len(t, msg.Images, 1)
	assert.Equal(t, "image/png", msg.Images[0].MimeType)

	raw, err := json.Marshal(NewInputMessage("plain"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"plain"}`, string(raw))
}
