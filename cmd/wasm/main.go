//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorNoPitch
)

// one estimator per page keeps the hysteresis state across calls
var estimator = pitch.NewEstimator(pitch.DefaultConfig())

// resonanceEstimate(samples, sampleRate) analyzes one frame.
// Returns: {error: number, data: {frequency, clarity, timestampMs, note?} | string}
func resonanceEstimate(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: samples, sampleRate")
	}
	if args[1].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a number")
	}
	samples, err := floatArray(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}

	est := estimator.Estimate(pitch.Frame{Samples: samples, SampleRate: args[1].Int()})

	data := js.Global().Get("Object").New()
	data.Set("frequency", est.Frequency)
	data.Set("clarity", est.Clarity)
	data.Set("timestampMs", est.TimestampMs)
	if res, ok := note.Map(est.Frequency, note.NoProfile()); ok {
		data.Set("note", noteObject(res))
	}

	code := ErrorNone
	if !est.Detected() {
		code = ErrorNoPitch
	}
	return makeResponse(code, data)
}

// resonanceNote(freq, profileData?) maps a frequency to a note, optionally
// against the frequencies of a stored profile.
func resonanceNote(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "Expected a frequency")
	}

	profile := note.NoProfile()
	if len(args) > 1 && !args[1].IsUndefined() && !args[1].IsNull() {
		data, err := floatArray(args[1])
		if err != nil {
			return makeErrorResponse(ErrorInvalidArgs, "profileData: "+err.Error())
		}
		profile = note.WithProfile(models.TuningProfile{Name: "page", Kind: models.KindReferenceTuning, Data: data})
	}

	res, ok := note.Map(args[0].Float(), profile)
	if !ok {
		return makeErrorResponse(ErrorInvalidArgs, "frequency must be positive")
	}
	return makeResponse(ErrorNone, noteObject(res))
}

// resonanceTension(lengthMm, freq) assesses string stress.
func resonanceTension(this js.Value, args []js.Value) any {
	if len(args) < 2 || args[0].Type() != js.TypeNumber || args[1].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: lengthMm, freq")
	}

	length := args[0].Float()
	m, ok := tension.Assess(length, args[1].Float())
	if !ok {
		return makeErrorResponse(ErrorInvalidArgs, "lengthMm and freq must be positive")
	}

	data := js.Global().Get("Object").New()
	data.Set("stressMpa", m.StressMPa)
	data.Set("zone", m.Zone.String())
	data.Set("barPercent", m.BarPercent)
	data.Set("maxSafeFrequency", tension.MaxSafeFrequency(length))
	return makeResponse(ErrorNone, data)
}

// resonanceReset() forgets the last accepted pitch, e.g. when the user
// moves to another string.
func resonanceReset(this js.Value, args []js.Value) any {
	estimator.Reset()
	return nil
}

func floatArray(v js.Value) ([]float64, error) {
	if v.Type() != js.TypeObject {
		return nil, fmt.Errorf("expected an Array or typed array")
	}
	length := v.Length()
	out := make([]float64, length)
	for i := 0; i < length; i++ {
		val := v.Index(i)
		if val.Type() != js.TypeNumber {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = val.Float()
	}
	return out, nil
}

func noteObject(r note.Result) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("note", r.NoteLabel)
	obj.Set("midi", r.MidiIndex)
	obj.Set("targetFrequency", r.TargetFrequency)
	obj.Set("cents", r.Cents)
	obj.Set("fromProfile", r.FromProfile)
	return obj
}

func makeResponse(code int, data js.Value) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", code)
	result.Set("data", data)
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	return makeResponse(errorCode, js.ValueOf(message))
}

func main() {
	console := js.Global().Get("console")

	js.Global().Set("resonanceEstimate", js.FuncOf(resonanceEstimate))
	js.Global().Set("resonanceNote", js.FuncOf(resonanceNote))
	js.Global().Set("resonanceTension", js.FuncOf(resonanceTension))
	js.Global().Set("resonanceReset", js.FuncOf(resonanceReset))

	if window := js.Global().Get("window"); !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "window object is undefined")
	}

	if !console.IsUndefined() {
		console.Call("log", "Resonance WASM module loaded and ready")
	}

	select {}
}
