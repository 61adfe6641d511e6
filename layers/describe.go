package layers

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Describe renders the graph topology as a protobuf Struct.
// Only configuration is described; no parameter values are included.
func (gs *GraphSpec) Describe() (*structpb.Struct, error) {
	layerList := make([]interface{}, 0, len(gs.layers))
	for _, layer := range gs.layers {
		params, err := describeParameters(layer.Parameters)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
		}
		layerList = append(layerList, map[string]interface{}{
			"name":            layer.Name,
			"type":            layer.Type.String(),
			"input":           layer.Input,
			"activation":      layer.Activation.String(),
			"input_features":  layer.InputFeatures,
			"output_features": layer.OutputFeatures,
			"input_shape":     shapeValue(layer.InputShape),
			"output_shape":    shapeValue(layer.OutputShape),
			"parameter_count": layer.ParameterCount,
			"parameters":      params,
		})
	}

	desc, err := structpb.NewStruct(map[string]interface{}{
		"name": gs.name,
		"input": map[string]interface{}{
			"name":  gs.inputName,
			"shape": shapeValue(gs.inputShape),
		},
		"output": map[string]interface{}{
			"name":  gs.outputName,
			"shape": shapeValue(gs.outputShape),
		},
		"total_parameters": gs.totalParameters,
		"layers":           layerList,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe graph %s: %w", gs.name, err)
	}
	return desc, nil
}

// MarshalJSON emits the Describe output as JSON
func (gs *GraphSpec) MarshalJSON() ([]byte, error) {
	desc, err := gs.Describe()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(desc)
}

// DescribeJSON is MarshalJSON with indentation, for printing
func (gs *GraphSpec) DescribeJSON() (string, error) {
	desc, err := gs.Describe()
	if err != nil {
		return "", err
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(desc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func shapeValue(shape []int) []interface{} {
	out := make([]interface{}, len(shape))
	for i, d := range shape {
		out[i] = d
	}
	return out
}

// describeParameters converts layer parameters to values structpb accepts
func describeParameters(params map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for k, val := range params {
		switch v := val.(type) {
		case ReshapeOp:
			out[k] = v.String()
		case int, int64, float32, float64, bool, string:
			out[k] = v
		default:
			return nil, fmt.Errorf("parameter %s has unsupported type %T", k, v)
		}
	}
	return out, nil
}
