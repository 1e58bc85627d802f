// Package actor models the authenticated caller driving an agent request.
package actor

// Role is the single driving role resolved for a request. A user may carry
// several role claims upstream; exactly one of them drives the agent flow.
type Role int

const (
	RoleUnauthenticated Role = iota
	RoleStudent
	RoleTeacher
	RoleAdmin
)

// String returns the lowercase claim spelling of the role.
func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	case RoleAdmin:
		return "admin"
	default:
		return "unauthenticated"
	}
}

// Context is resolved once at request entry and immutable afterwards.
// StudentID/TeacherID hold the role-specific scoping id; zero means the
// lookup found no matching row, which the auditor treats as a hard denial.
type Context struct {
	Authenticated bool
	UserID        int64
	Role          Role
	StudentID     int64
	TeacherID     int64
}

// Student builds a student actor context.
func Student(userID, studentID int64) Context {
	return Context{Authenticated: true, UserID: userID, Role: RoleStudent, StudentID: studentID}
}

// Teacher builds a teacher actor context.
func Teacher(userID, teacherID int64) Context {
	return Context{Authenticated: true, UserID: userID, Role: RoleTeacher, TeacherID: teacherID}
}

// Admin builds an admin actor context.
func Admin(userID int64) Context {
	return Context{Authenticated: true, UserID: userID, Role: RoleAdmin}
}
