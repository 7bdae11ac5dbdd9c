package game

// ToastKind classifies a user-facing notification.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
	ToastError   ToastKind = "error"
)

// Toast is a fire-and-forget notification for the UI collaborator.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
}

// Notifier receives notifications from the engine. Delivery is best-effort;
// implementations may drop messages but must never panic back into the
// engine.
type Notifier interface {
	Notify(kind ToastKind, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(kind ToastKind, message string)

func (f NotifierFunc) Notify(kind ToastKind, message string) { f(kind, message) }

// NopNotifier discards all notifications.
var NopNotifier Notifier = NotifierFunc(func(ToastKind, string) {})

// SoundCue names an audio/haptic cue.
type SoundCue string

const (
	CueClick SoundCue = "click"
	CueFlip  SoundCue = "flip"
	CueWin   SoundCue = "win"
	CueLoss  SoundCue = "loss"
	CuePush  SoundCue = "push"
)

// SoundSink plays cues. Best-effort; must never panic back into the engine.
type SoundSink interface {
	Play(cue SoundCue)
}

// SoundFunc adapts a function to the SoundSink interface.
type SoundFunc func(cue SoundCue)

func (f SoundFunc) Play(cue SoundCue) { f(cue) }

// NopSoundSink discards all cues.
var NopSoundSink SoundSink = SoundFunc(func(SoundCue) {})
