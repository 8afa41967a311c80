package leds

// Pattern selects one of the chase sequences.
type Pattern uint8

const (
	PatternRun Pattern = iota
	PatternKITT
	PatternSpinner
	PatternDiamond
	PatternDiamondFull
	PatternExplode
	PatternRunInverse
	PatternJumpman
	PatternDualRunner
	PatternDoubleRunner

	NumPatterns = 10
)

var patterns = [NumPatterns][]uint8{
	PatternRun: {
		0b100000, 0b010000, 0b001000, 0b000100, 0b000010, 0b000001,
	},
	PatternKITT: {
		0b100000, 0b010000, 0b001000, 0b000100, 0b000010,
		0b000001, 0b000010, 0b000100, 0b001000, 0b010000,
	},
	PatternSpinner: {
		0b100000, 0b110000, 0b111000, 0b111100, 0b111110, 0b111111,
		0b011111, 0b001111, 0b000111, 0b000011, 0b000001,
	},
	PatternDiamond: {
		0b001100, 0b010010, 0b100001, 0b010010,
	},
	PatternDiamondFull: {
		0b000000, 0b001100, 0b011110, 0b111111, 0b011110, 0b001100,
	},
	PatternExplode: {
		0b001100, 0b011110, 0b111111, 0b110011, 0b100001,
	},
	PatternRunInverse: {
		0b000001, 0b000010, 0b000100, 0b001000, 0b010000, 0b100000,
	},
	PatternJumpman: {
		0b000001, 0b100000, 0b000010, 0b010000, 0b000100,
		0b001000, 0b000100, 0b010000, 0b000010, 0b100000,
	},
	PatternDualRunner: {
		0b100100, 0b010010, 0b001001,
	},
	PatternDoubleRunner: {
		0b110000, 0b011000, 0b001100, 0b000110, 0b000011, 0b100001,
	},
}

// Signal identifies a special status animation.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalStartup
	SignalNoAudio
	SignalWait
	SignalBadInput
	SignalAlarm
	SignalLearnStart
	SignalLearnNext
	SignalLearnDone
	SignalCopyError

	numSignals = 10
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalStartup:
		return "startup"
	case SignalNoAudio:
		return "no-audio"
	case SignalWait:
		return "wait"
	case SignalBadInput:
		return "bad-input"
	case SignalAlarm:
		return "alarm"
	case SignalLearnStart:
		return "learn-start"
	case SignalLearnNext:
		return "learn-next"
	case SignalLearnDone:
		return "learn-done"
	case SignalCopyError:
		return "copy-error"
	}
	return "unknown"
}

// step shows mask for ticks pattern periods.
type step struct {
	mask  uint8
	ticks uint16
}

type signalDef struct {
	loop  bool
	steps []step
}

const startupTicks = 20

var signals = [numSignals]signalDef{
	SignalStartup: {steps: []step{
		{0b100000, startupTicks}, {0b110000, startupTicks}, {0b111000, startupTicks},
		{0b111100, startupTicks}, {0b111110, startupTicks}, {0b111111, startupTicks * 2},
		{0b111110, startupTicks}, {0b111100, startupTicks}, {0b111000, startupTicks},
		{0b110000, startupTicks}, {0b100000, startupTicks},
	}},
	SignalNoAudio: {steps: []step{
		{0b000000, 100},
		{0b000001, 100}, {0b000000, 100},
		{0b000001, 100}, {0b000000, 100},
	}},
	SignalWait: {loop: true, steps: []step{
		{0b100000, 50}, {0b000001, 50},
	}},
	SignalBadInput: {steps: []step{
		{0b000000, 100},
		{0b100000, 100}, {0b000000, 100},
		{0b100000, 100}, {0b000000, 100},
	}},
	SignalAlarm: {steps: []step{
		{0b000111, 50}, {0b111000, 50}, {0b000111, 50}, {0b111000, 50},
		{0b000111, 50}, {0b111000, 50}, {0b000111, 50}, {0b111000, 50},
	}},
	SignalLearnStart: {steps: []step{
		{0b000000, 20},
		{0b111111, 100}, {0b000000, 100},
		{0b111111, 100}, {0b000000, 1},
	}},
	SignalLearnNext: {steps: []step{
		{0b000000, 10},
		{0b001100, 50}, {0b000000, 50},
		{0b001100, 50}, {0b000000, 1},
	}},
	SignalLearnDone: {steps: []step{
		{0b000000, 10},
		{0b111111, 50}, {0b000000, 50},
		{0b111111, 50}, {0b000000, 50},
	}},
	SignalCopyError: {loop: true, steps: []step{
		{0b110000, 20}, {0b000011, 20},
	}},
}
