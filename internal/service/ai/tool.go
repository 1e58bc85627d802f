package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// markAttendanceInput is the tool's typed argument payload.
type markAttendanceInput struct {
	StudentID int    `json:"studentId"`
	Status    string `json:"status"`
}

// markAttendanceOutput carries the textual result reported to the model.
type markAttendanceOutput struct {
	Result string `json:"result"`
}

var validStatuses = map[string]struct{}{
	"present": {},
	"absent":  {},
	"late":    {},
}

// NewMarkAttendanceTool declares the one action the write-path model may
// invoke. Ordinary bad input (invalid id or status) produces a textual
// rejection, not an error; errors are reserved for infrastructure faults.
func NewMarkAttendanceTool(mark MarkAttendanceFunc) tool.BaseTool {
	if mark == nil {
		mark = markAttendanceStub
	}
	return toolutils.NewTool(
		&schema.ToolInfo{
			Name: "mark_attendance",
			Desc: "Mark a student's attendance status for the current session",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"studentId": {
					Type:     schema.Integer,
					Desc:     "The numeric id of the student",
					Required: true,
				},
				"status": {
					Type:     schema.String,
					Desc:     "Attendance status: present, absent or late",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input markAttendanceInput) (*markAttendanceOutput, error) {
			if input.StudentID <= 0 {
				return &markAttendanceOutput{
					Result: fmt.Sprintf("Invalid student id %d: it must be a positive number.", input.StudentID),
				}, nil
			}

			status := strings.ToLower(strings.TrimSpace(input.Status))
			if _, ok := validStatuses[status]; !ok {
				return &markAttendanceOutput{
					Result: fmt.Sprintf("Invalid status %q: it must be present, absent or late.", input.Status),
				}, nil
			}

			if err := mark(ctx, input.StudentID, status); err != nil {
				return nil, fmt.Errorf("mark attendance: %w", err)
			}

			return &markAttendanceOutput{
				Result: fmt.Sprintf("Marked student %d as %s.", input.StudentID, status),
			}, nil
		},
	)
}

// markAttendanceStub stands in for the external attendance persistence API.
func markAttendanceStub(_ context.Context, studentID int, status string) error {
	log.Printf("[write-flow] mark attendance: student=%d status=%s", studentID, status)
	return nil
}
