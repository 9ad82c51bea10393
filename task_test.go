package hydra

import (
	"errors"
	"testing"
	"time"
)

func TestTaskBuilder(t *testing.T) {
	task, err := NewTask("matrix_vector_multiply").
		Matrix([][]float32{{1, 2}, {3, 4}}).
		Vector([]float32{1, 1}).
		PreferredBackend(GPUCUDA).
		CPUIntensive(true).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if task.ID() == "" {
		t.Error("id was not generated")
	}
	if task.Operation() != "matrix_vector_multiply" {
		t.Errorf("operation = %q", task.Operation())
	}
	if b, ok := task.PreferredBackend(); !ok || b != GPUCUDA {
		t.Errorf("preference = %v %v", b, ok)
	}
	if !task.CPUIntensive() || task.RequiresGPU() {
		t.Error("routing hints wrong")
	}
	if task.OperandSize() != 6 {
		t.Errorf("operand size = %d, want 6", task.OperandSize())
	}

	other, err := NewTask("dot_product").Build()
	if err != nil {
		t.Fatal(err)
	}
	if other.ID() == task.ID() {
		t.Error("generated ids collide")
	}
	if _, ok := other.PreferredBackend(); ok {
		t.Error("unset preference reported as set")
	}

	explicit, err := NewTask("dot_product").ID("fixed").Build()
	if err != nil {
		t.Fatal(err)
	}
	if explicit.ID() != "fixed" {
		t.Errorf("explicit id not preserved: %q", explicit.ID())
	}
}

func TestTaskBuilderRequiresOperation(t *testing.T) {
	if _, err := NewTask("").Build(); !IsInvalidArgError(err) {
		t.Errorf("empty operation: got %v", err)
	}
}

func TestResultBuilder(t *testing.T) {
	res, err := NewResult("t1").
		Data([]float32{1, 2}).
		ExecutionTime(3 * time.Millisecond).
		DeviceInfo("cpu-multi").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success() || res.Error() != "" {
		t.Error("successful result carries an error")
	}
	if res.Data() == nil || res.DeviceInfo() != "cpu-multi" {
		t.Errorf("payload lost: %v %q", res.Data(), res.DeviceInfo())
	}
	if res.ExecutionTime() != 3*time.Millisecond {
		t.Errorf("execution time = %v", res.ExecutionTime())
	}

	// Data and Error are mutually exclusive; the last call wins.
	failed, err := NewResult("t2").
		Data([]float32{1}).
		Error(errors.New("device lost")).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if failed.Success() || failed.Data() != nil {
		t.Error("failed result still carries data")
	}
	if failed.Error() != "device lost" {
		t.Errorf("error message = %q", failed.Error())
	}

	if _, err := NewResult("").Build(); !IsInvalidArgError(err) {
		t.Errorf("missing task id: got %v", err)
	}
}
