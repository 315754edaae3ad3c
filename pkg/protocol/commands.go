package protocol

// Command codes from spec.md §3 and §6.
const (
	CmdNOP          byte = 0x00
	CmdReset        byte = 0x02
	CmdBufferStatus byte = 0x0E
	CmdVersion      byte = 0x0F

	CmdClear byte = 0x10
	CmdPixel byte = 0x11
	CmdRect  byte = 0x12
	CmdText  byte = 0x21
	CmdFlush byte = 0x2F

	CmdSpriteBase     byte = 0x30
	CmdSpriteDefine   byte = 0x30
	CmdSpriteMove     byte = 0x31
	CmdSpriteShow     byte = 0x32
	CmdSpriteHide     byte = 0x33
	CmdSpriteDelete   byte = 0x34
	CmdSpriteCollide  byte = 0x35
	CmdSpriteCompose  byte = 0x36
	CmdSpriteMax      byte = 0x36

	CmdAIInfer   byte = 0x50
	CmdAITrain   byte = 0x51
	CmdAIStatus  byte = 0x52
	CmdAISave    byte = 0x53
	CmdAILoad    byte = 0x54
	CmdAIList    byte = 0x55
	CmdAIDelete  byte = 0x56

	CmdModelInfo   byte = 0x60
	CmdModelList   byte = 0x61
	CmdModelSelect byte = 0x62
	CmdModelUpload byte = 0x63
	CmdModelDelete byte = 0x64
	CmdFinetuneStart byte = 0x65
	CmdFinetuneData  byte = 0x66
	CmdFinetuneStop  byte = 0x67
	CmdUploadChunk   byte = 0x68
	CmdUploadEnd     byte = 0x69

	CmdBatch byte = 0x70

	CmdIndustrialBase  byte = 0xA0
	CmdDeviceID        byte = 0xA0
	CmdBufferReset     byte = 0xA1
	CmdBufferWrite     byte = 0xA2
	CmdBufferSnapshot  byte = 0xA3
	CmdBaselineCapture byte = 0xA4
	CmdGetDelta        byte = 0xA5
	CmdCorrelate       byte = 0xA6
	CmdIndustrialMax   byte = 0xA7
)

// Class identifies which of the command ranges in spec.md §3 a command
// byte falls into.
type Class int

const (
	ClassSystem Class = iota
	ClassGraphics
	ClassSprite
	ClassAI
	ClassModel
	ClassBatch
	ClassUploadAdjunct
	ClassIndustrial
	ClassUnknown
)

// ClassOf classifies a command byte.
func ClassOf(cmd byte) Class {
	switch {
	case cmd == CmdUploadChunk || cmd == CmdUploadEnd:
		return ClassUploadAdjunct
	case cmd <= 0x0F:
		return ClassSystem
	case cmd >= 0x10 && cmd <= 0x2F:
		return ClassGraphics
	case cmd >= 0x30 && cmd <= 0x3F:
		return ClassSprite
	case cmd >= 0x50 && cmd <= 0x5F:
		return ClassAI
	case cmd >= 0x60 && cmd <= 0x6F:
		return ClassModel
	case cmd == CmdBatch:
		return ClassBatch
	case cmd >= 0xA0 && cmd <= 0xA7:
		return ClassIndustrial
	default:
		return ClassUnknown
	}
}

// Deferred reports whether the dispatcher must enqueue a command of
// this class to the worker rather than executing it in-line. Per
// spec.md §4.5: graphics and sprite commands are always deferred;
// system/upload/batch/industrial commands always execute in-line. The
// AI and Model-Management classes are mixed — use AICommandDeferred
// and ModelCommandDeferred for those.
func (c Class) Deferred() bool {
	switch c {
	case ClassGraphics, ClassSprite:
		return true
	default:
		return false
	}
}

// AICommandDeferred reports whether a specific AI/Inference command
// defers to the worker. AI_INFER, AI_TRAIN and AI_STATUS touch the
// active runtime graph and training session and so run on the worker;
// AI_SAVE, AI_LOAD, AI_LIST and AI_DELETE are filesystem operations
// that run in-line on the I/O core per spec.md §4.5's "filesystem
// save/load ... serialized with training" note.
func AICommandDeferred(cmd byte) bool {
	switch cmd {
	case CmdAIInfer, CmdAITrain, CmdAIStatus:
		return true
	default:
		return false
	}
}

// ModelCommandDeferred reports whether a specific Model-Management
// command defers to the worker. MODEL_SELECT, MODEL_INFO and
// MODEL_LIST touch the active runtime graph and so run on the worker;
// MODEL_UPLOAD and MODEL_DELETE are filesystem operations that run
// in-line on the I/O core per spec.md §4.5.
func ModelCommandDeferred(cmd byte) bool {
	switch cmd {
	case CmdModelSelect, CmdModelInfo, CmdModelList, CmdFinetuneStart, CmdFinetuneData, CmdFinetuneStop:
		return true
	default:
		return false
	}
}
