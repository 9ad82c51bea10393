package hydra

import (
	"time"

	"github.com/google/uuid"
)

// Task is the immutable descriptor a worker consumes. Exactly the operand
// fields relevant to Operation are populated; callers must not rely on the
// remaining fields being usable.
type Task struct {
	id               string
	operation        string
	matrix           [][]float32
	vector           []float32
	batchInputs      [][]float32
	preferredBackend Backend
	hasPreference    bool
	cpuIntensive     bool
	requiresGPU      bool
	modelPath        string
}

// ID returns the unique task identifier
func (t *Task) ID() string { return t.id }

// Operation returns the dispatch tag, e.g. "matrix_vector_multiply"
func (t *Task) Operation() string { return t.operation }

// Matrix returns the row-major matrix operand, if set
func (t *Task) Matrix() [][]float32 { return t.matrix }

// Vector returns the vector operand, if set
func (t *Task) Vector() []float32 { return t.vector }

// BatchInputs returns the batch operand, if set
func (t *Task) BatchInputs() [][]float32 { return t.batchInputs }

// PreferredBackend returns the routing hint and whether one was set
func (t *Task) PreferredBackend() (Backend, bool) {
	return t.preferredBackend, t.hasPreference
}

// CPUIntensive returns the CPU routing hint
func (t *Task) CPUIntensive() bool { return t.cpuIntensive }

// RequiresGPU returns the GPU routing hint
func (t *Task) RequiresGPU() bool { return t.requiresGPU }

// ModelPath returns the model artifact path for inference tasks
func (t *Task) ModelPath() string { return t.modelPath }

// OperandSize returns the element count of the populated operands,
// used by the backend selection heuristic.
func (t *Task) OperandSize() int {
	n := len(t.vector)
	for _, row := range t.matrix {
		n += len(row)
	}
	for _, in := range t.batchInputs {
		n += len(in)
	}
	return n
}

// TaskBuilder assembles a Task. Build validates the invariants: a task
// always carries an id and an operation tag.
type TaskBuilder struct {
	task Task
}

// NewTask starts a builder for the given operation tag
func NewTask(operation string) *TaskBuilder {
	return &TaskBuilder{task: Task{operation: operation}}
}

// ID sets an explicit task id; if unset, Build generates one
func (b *TaskBuilder) ID(id string) *TaskBuilder {
	b.task.id = id
	return b
}

// Matrix sets the row-major matrix operand
func (b *TaskBuilder) Matrix(m [][]float32) *TaskBuilder {
	b.task.matrix = m
	return b
}

// Vector sets the vector operand
func (b *TaskBuilder) Vector(v []float32) *TaskBuilder {
	b.task.vector = v
	return b
}

// BatchInputs sets the batch operand
func (b *TaskBuilder) BatchInputs(batch [][]float32) *TaskBuilder {
	b.task.batchInputs = batch
	return b
}

// PreferredBackend sets the routing hint
func (b *TaskBuilder) PreferredBackend(backend Backend) *TaskBuilder {
	b.task.preferredBackend = backend
	b.task.hasPreference = true
	return b
}

// CPUIntensive marks the task as CPU-bound
func (b *TaskBuilder) CPUIntensive(v bool) *TaskBuilder {
	b.task.cpuIntensive = v
	return b
}

// RequiresGPU marks the task as requiring a GPU backend
func (b *TaskBuilder) RequiresGPU(v bool) *TaskBuilder {
	b.task.requiresGPU = v
	return b
}

// ModelPath sets the model artifact path
func (b *TaskBuilder) ModelPath(p string) *TaskBuilder {
	b.task.modelPath = p
	return b
}

// Build finalizes the task. A missing id is filled with a fresh UUID;
// a missing operation is an error.
func (b *TaskBuilder) Build() (*Task, error) {
	if b.task.operation == "" {
		return nil, NewInvalidArgError("TaskBuilder.Build", "operation must be set")
	}
	if b.task.id == "" {
		b.task.id = uuid.NewString()
	}
	t := b.task
	return &t, nil
}

// Result is the immutable descriptor a worker produces. A task yields
// exactly one result; Data is present iff Success, Error iff not.
type Result struct {
	taskID        string
	success       bool
	data          any
	err           string
	executionTime time.Duration
	deviceInfo    string
}

// TaskID returns the id of the originating task
func (r *Result) TaskID() string { return r.taskID }

// Success reports whether the task completed
func (r *Result) Success() bool { return r.success }

// Data returns the result payload; nil on failure
func (r *Result) Data() any { return r.data }

// Error returns the failure message; empty on success
func (r *Result) Error() string { return r.err }

// ExecutionTime returns the measured execution duration
func (r *Result) ExecutionTime() time.Duration { return r.executionTime }

// DeviceInfo returns the backend identifier that produced the result
func (r *Result) DeviceInfo() string { return r.deviceInfo }

// ResultBuilder assembles a Result
type ResultBuilder struct {
	result Result
}

// NewResult starts a builder correlated to a task id
func NewResult(taskID string) *ResultBuilder {
	return &ResultBuilder{result: Result{taskID: taskID}}
}

// Data marks the result successful with the given payload
func (b *ResultBuilder) Data(data any) *ResultBuilder {
	b.result.success = true
	b.result.data = data
	b.result.err = ""
	return b
}

// Error marks the result failed with the given cause
func (b *ResultBuilder) Error(err error) *ResultBuilder {
	b.result.success = false
	b.result.data = nil
	if err != nil {
		b.result.err = err.Error()
	}
	return b
}

// ExecutionTime records the measured duration
func (b *ResultBuilder) ExecutionTime(d time.Duration) *ResultBuilder {
	b.result.executionTime = d
	return b
}

// DeviceInfo records the producing backend identifier
func (b *ResultBuilder) DeviceInfo(info string) *ResultBuilder {
	b.result.deviceInfo = info
	return b
}

// Build finalizes the result
func (b *ResultBuilder) Build() (*Result, error) {
	if b.result.taskID == "" {
		return nil, NewInvalidArgError("ResultBuilder.Build", "taskID must be set")
	}
	r := b.result
	return &r, nil
}
