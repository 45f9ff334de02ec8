package runner

// Protocol describes how a tool frames its conversation.
type Protocol struct {
	// Executable is the default program name, resolved through PATH.
	Executable string

	// Prompts are tokens the tool prints without a newline before it
	// blocks on input. The output reader ends a line after each.
	Prompts []string

	// ExitCommand is written before input is closed on Close. Empty
	// means the tool only exits on end of input.
	ExitCommand string

	// CloseInputAfterRun closes the tool's input after the first flush.
	// One-shot tools only start working once their input ends.
	CloseInputAfterRun bool
}

// Tool is the per-tool capability set a Session drives.
type Tool interface {
	// Name identifies the tool in logs and errors.
	Name() string

	// Protocol returns the tool's framing rules.
	Protocol() Protocol

	// Bootstrap returns the blocks that must precede every user command
	// each time a process starts, such as consuming a startup banner.
	Bootstrap() ([]Block, error)
}

// Resetter is implemented by tools that hold per-process results.
type Resetter interface {
	ResetResults()
}
