package gpu

type command struct {
	name string
	fn   func() error
}

// A list of recorded commands. Recording happens on the caller's go-routine;
// the commands run later on the device queue.
type CommandBuffer struct {
	label    string
	commands []command
}

func (cb *CommandBuffer) Label() string {
	return cb.label
}

// Record a named command.
func (cb *CommandBuffer) Record(name string, fn func() error) {
	cb.commands = append(cb.commands, command{name: name, fn: fn})
}

// Get the number of recorded commands.
func (cb *CommandBuffer) Len() int {
	return len(cb.commands)
}

// Get the names of the recorded commands in recording order.
func (cb *CommandBuffer) Names() []string {
	names := make([]string, len(cb.commands))
	for i, c := range cb.commands {
		names[i] = c.name
	}
	return names
}
