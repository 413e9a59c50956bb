//
//  Copyright © Manetu Inc. All rights reserved.
//

package record

import (
	"encoding/json"

	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToValue converts a message to its canonical structured form.  Protobuf
// messages use their JSON mapping; anything else goes through encoding/json.
func ToValue(msg interface{}) (*structpb.Value, error) {
	switch m := msg.(type) {
	case nil:
		return nil, nil
	case *structpb.Value:
		return proto.Clone(m).(*structpb.Value), nil
	case proto.Message:
		data, err := protojson.Marshal(m)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode message")
		}
		return unmarshalValue(data)
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode message")
		}
		return unmarshalValue(data)
	}
}

func unmarshalValue(data []byte) (*structpb.Value, error) {
	v := &structpb.Value{}
	if err := protojson.Unmarshal(data, v); err != nil {
		return nil, errors.Wrap(err, "failed to decode message")
	}
	return v, nil
}

// Finalize copies skeleton and attaches the request and response bodies the
// directive asks for.  Either message may be nil.  The skeleton is not modified.
func Finalize(skeleton *AuditRecord, directive selector.Directive, trigger Trigger, req, resp interface{}) (*AuditRecord, error) {
	r := skeleton.Clone()
	r.Directive = directive.String()
	r.Trigger = trigger
	r.Request = nil
	r.Response = nil

	if directive.IncludesRequest() && req != nil {
		v, err := ToValue(req)
		if err != nil {
			return nil, errors.Wrap(err, "request")
		}
		r.Request = v
	}
	if directive.IncludesResponse() && resp != nil {
		v, err := ToValue(resp)
		if err != nil {
			return nil, errors.Wrap(err, "response")
		}
		r.Response = v
	}

	return r, nil
}
