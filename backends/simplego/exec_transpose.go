package simplego

import (
	"unsafe"

	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/core/shapes"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
)

func init() {
	RegisterOp("linalg.transpose", buildTranspose)
}

// buildTranspose: output axis i is input axis permutation[i].
func buildTranspose(op *ir.Operation) (Executor, error) {
	if len(op.Operands) != 1 || len(op.Results) != 1 {
		return nil, errors.New("expected 1 operand and 1 result")
	}
	attr, found := op.Attrs.Get("permutation")
	if !found {
		return nil, errors.New("missing \"permutation\" attribute")
	}
	value, err := ir.AttrValue(attr)
	if err != nil {
		return nil, err
	}
	permutation, ok := value.([]int64)
	if !ok {
		return nil, errors.Errorf("\"permutation\" must be an integer array, got %s", attr)
	}
	return func(_ backends.KernelContext, inputs []*backends.Memref) (*backends.Memref, error) {
		return execTranspose(inputs[0], permutation)
	}, nil
}

func execTranspose(input *backends.Memref, permutation []int64) (*backends.Memref, error) {
	rank := input.Rank()
	if len(permutation) != rank {
		return nil, errors.Errorf("permutation %v for input of rank %d", permutation, rank)
	}
	outputDims := make([]int, rank)
	outputSizes := make([]int64, rank)
	for axis, inputAxis := range permutation {
		outputSizes[axis] = input.Sizes[inputAxis]
		outputDims[axis] = int(outputSizes[axis])
	}
	output := backends.AllocateMemref(input.DType, outputSizes)
	if output.Data == nil {
		return output, nil
	}

	elementSize := uintptr(input.DType.Size())
	dst := unsafe.Slice((*byte)(output.Data), uintptr(output.NumElements())*elementSize)
	inputIndices := make([]int, rank)
	pos := uintptr(0)
	for outputIndices := range shapes.IterDimensions(outputDims) {
		for axis, idx := range outputIndices {
			inputIndices[permutation[axis]] = idx
		}
		src := unsafe.Slice((*byte)(input.ElementPointer(inputIndices)), elementSize)
		copy(dst[pos:pos+elementSize], src)
		pos += elementSize
	}
	return output, nil
}
