package rbac

const (
	PermTake     = "failedq:take"     // view the menu and generate remedial quizzes
	PermProgress = "failedq:progress" // per-answer mastery updates
	PermCapture  = "failedq:capture"  // submit completion events
	PermSettings = "failedq:settings"
	PermReport   = "failedq:report"
	PermEvents   = "failedq:events"
)

// Default policy. "student" is what host-issued tokens get when they carry no role.
var DefaultPolicy = Policy{
	"student": {
		PermTake,
		PermProgress,
		PermCapture,
	},
	"teacher": {
		PermTake,
		PermProgress,
		PermCapture,
		PermReport,
		PermEvents,
	},
	"service": {
		PermCapture,
	},
	"admin": {
		"*", // everything
	},
}
