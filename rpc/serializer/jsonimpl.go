package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/taskfire/taskfire-go/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) SerializeRequest(req common.Request) ([]byte, error) {
	return json.Marshal(req)
}

func (j jsonSerializerImpl) DeserializeRequest(b []byte) (common.Request, error) {
	// Keep numbers as json.Number so large request ids survive the round trip
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var req common.Request
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request must be a json object")
	}
	return req, nil
}

func (j jsonSerializerImpl) SerializeEnvelope(env common.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (j jsonSerializerImpl) DeserializeEnvelope(b []byte) (common.Inbound, error) {
	var env common.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	return common.Classify(env), nil
}

func (j jsonSerializerImpl) GetName() string {
	return "json"
}
