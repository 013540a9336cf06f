// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"io"
	"math"
	"sync"
	"unsafe"

	"github.com/becky93/librf/golang/librf/rfl"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	forests           = make(map[uint64]*rfl.RandomForest)

	lastErrorMu sync.Mutex
	lastError   string

	logSilenceOnce sync.Once
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

func storeForest(f *rfl.RandomForest) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	forests[handle] = f
	nextHandle++
	return handle
}

func fetchForest(handle uint64) (*rfl.RandomForest, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	forest, ok := forests[handle]
	if !ok {
		return nil, errors.New("invalid forest handle")
	}
	return forest, nil
}

//recoverContract turns a panic raised on a violated contract into the last error.
func recoverContract(code *C.int) {
	if r := recover(); r != nil {
		setLastError(fmt.Errorf("%v", r))
		*code = -1
	}
}

//export FreeModel
func FreeModel(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(forests, uint64(handle))
}

func copyFloatSlice(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	src := unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length)
	dst := make([]float64, length)
	copy(dst, src)
	return dst, nil
}

func copyLabels(ptr *C.int, length int) ([]int, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if ptr == nil {
		return nil, errors.New("null pointer for labels")
	}
	src := unsafe.Slice((*C.int)(unsafe.Pointer(ptr)), length)
	dst := make([]int, length)
	for i, v := range src {
		dst[i] = int(v)
	}
	return dst, nil
}

func buildDense(ptr *C.double, rows, cols C.int) (*mat.Dense, error) {
	r := int(rows)
	c := int(cols)
	if r <= 0 || c <= 0 {
		return nil, errors.Errorf("invalid matrix dimensions %d x %d", r, c)
	}
	data, err := copyFloatSlice(ptr, r*c)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(r, c, data), nil
}

//export TrainForest
func TrainForest(
	featuresPtr *C.double,
	rows C.int,
	cols C.int,
	labelsPtr *C.int,
	numTrees C.int,
	maxDepth C.int,
	minNodeSize C.int,
	minGain C.double,
	k C.int,
	seed C.ulonglong,
) (handle C.ulonglong) {
	setLastError(nil)
	logSilenceOnce.Do(func() {
		log.SetOutput(io.Discard)
	})

	features, err := buildDense(featuresPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 0
	}
	labels, err := copyLabels(labelsPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 0
	}
	set, err := rfl.NewInstanceSet(features, labels)
	if err != nil {
		setLastError(err)
		return 0
	}

	var code C.int
	defer recoverContract(&code)

	forest := rfl.NewRandomForest(set, rfl.ForestOptions{
		NumTrees: int(numTrees),
		Tree: rfl.Options{
			MaxDepth:    int(maxDepth),
			MinNodeSize: int(minNodeSize),
			MinGain:     float64(minGain),
			K:           int(k),
		},
		Seed: uint64(seed),
	})
	return C.ulonglong(storeForest(forest))
}

//export Predict
func Predict(
	handle C.ulonglong,
	featuresPtr *C.double,
	rows C.int,
	cols C.int,
	outputPtr *C.int,
) (code C.int) {
	setLastError(nil)
	forest, err := fetchForest(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}

	features, err := buildDense(featuresPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 2
	}
	set, err := rfl.NewInstanceSet(features, make([]int, int(rows)))
	if err != nil {
		setLastError(err)
		return 3
	}
	if outputPtr == nil {
		setLastError(errors.New("null pointer for predictions"))
		return 4
	}
	if err := forest.CheckAttributes(set); err != nil {
		setLastError(err)
		return 5
	}

	defer recoverContract(&code)
	out := unsafe.Slice((*C.int)(unsafe.Pointer(outputPtr)), int(rows))
	for p := range out {
		out[p] = C.int(forest.Predict(set, p))
	}
	return 0
}

//export OOBAccuracy
func OOBAccuracy(handle C.ulonglong) C.double {
	setLastError(nil)
	forest, err := fetchForest(uint64(handle))
	if err != nil {
		setLastError(err)
		return C.double(math.NaN())
	}

	var code C.int
	result := C.double(math.NaN())
	func() {
		defer recoverContract(&code)
		result = C.double(forest.OOBAccuracy())
	}()
	return result
}

//export SaveModel
func SaveModel(handle C.ulonglong, path *C.char) C.int {
	setLastError(nil)
	forest, err := fetchForest(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if err := forest.Save(C.GoString(path)); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export RenderTrees
func RenderTrees(handle C.ulonglong, prefix, figureType, directory *C.char) C.int {
	setLastError(nil)
	forest, err := fetchForest(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	goPrefix := C.GoString(prefix)
	goFigureType := C.GoString(figureType)
	goDir := C.GoString(directory)
	if goPrefix == "" {
		goPrefix = "tree"
	}
	if goFigureType == "" {
		goFigureType = "svg"
	}
	if goDir == "" {
		goDir = "."
	}
	if err := forest.RenderTrees(goPrefix, goFigureType, goDir); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export LoadModel
func LoadModel(path *C.char) C.ulonglong {
	setLastError(nil)
	forest, err := rfl.LoadModel(C.GoString(path))
	if err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeForest(forest))
}

//export GetLastError
func GetLastError() *C.char {
	errStr := getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
