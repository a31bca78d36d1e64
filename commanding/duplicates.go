package commanding

type duplicateAction int

const (
	duplicateNone duplicateAction = iota
	duplicateCompleted
	duplicateParked
)

// duplicateTracker keeps the command ids seen by a mailbox.
// It is not safe for concurrent use, the mailbox lock guards it.
type duplicateTracker struct {
	capacity int

	marked   map[string]struct{}
	results  map[string]Result
	inflight map[string]struct{}
	parked   map[string][]*ProcessingCommand

	// order holds the ids in marked and results from oldest to newest
	order []string
}

func newDuplicateTracker(capacity int) *duplicateTracker {
	return &duplicateTracker{
		capacity: capacity,
		marked:   map[string]struct{}{},
		results:  map[string]Result{},
		inflight: map[string]struct{}{},
		parked:   map[string][]*ProcessingCommand{},
	}
}

func (d *duplicateTracker) mark(commandID string) {
	if commandID == "" {
		return
	}
	if _, known := d.marked[commandID]; known {
		return
	}

	d.marked[commandID] = struct{}{}
	if _, completed := d.results[commandID]; !completed {
		d.remember(commandID)
	}
}

// resolve decides what the mailbox does with a command it is about to handle
func (d *duplicateTracker) resolve(cmd *ProcessingCommand) (duplicateAction, Result) {
	commandID := cmd.message.CommandID()
	if commandID == "" {
		return duplicateNone, Result{}
	}

	if result, known := d.results[commandID]; known {
		cmd.duplicate = true
		return duplicateCompleted, result
	}

	if _, running := d.inflight[commandID]; running {
		cmd.duplicate = true
		d.parked[commandID] = append(d.parked[commandID], cmd)
		return duplicateParked, Result{}
	}

	if _, marked := d.marked[commandID]; marked {
		cmd.duplicate = true
	}
	d.inflight[commandID] = struct{}{}

	return duplicateNone, Result{}
}

// complete stores the result of a command and returns the duplicates that waited for it
func (d *duplicateTracker) complete(commandID string, result Result) []*ProcessingCommand {
	if commandID == "" {
		return nil
	}

	delete(d.inflight, commandID)

	if _, known := d.results[commandID]; !known {
		if _, marked := d.marked[commandID]; !marked {
			d.remember(commandID)
		}
		d.results[commandID] = result
	}

	parked := d.parked[commandID]
	delete(d.parked, commandID)

	return parked
}

func (d *duplicateTracker) remember(commandID string) {
	d.order = append(d.order, commandID)
	if d.capacity <= 0 {
		return
	}

	for len(d.order) > d.capacity {
		oldest := d.order[0]
		d.order = d.order[1:]

		delete(d.marked, oldest)
		delete(d.results, oldest)
	}
}

func (d *duplicateTracker) size() int {
	return len(d.order)
}
