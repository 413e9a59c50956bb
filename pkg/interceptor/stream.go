//
//  Copyright © Manetu Inc. All rights reserved.
//

package interceptor

import (
	"context"
	"io"

	"google.golang.org/grpc"
)

// serverStream observes the messages of an audited stream
type serverStream struct {
	grpc.ServerStream
	ctx  context.Context
	call *call
}

// Context returns the call context carrying the record builder
func (s *serverStream) Context() context.Context {
	return s.ctx
}

func (s *serverStream) RecvMsg(m interface{}) error {
	err := s.ServerStream.RecvMsg(m)
	if err == io.EOF {
		s.call.halfClose()
		return err
	}
	if err != nil {
		return err
	}

	return s.call.onInbound(s.ctx, m)
}

func (s *serverStream) SendMsg(m interface{}) error {
	if err := s.call.onOutbound(s.ctx, m); err != nil {
		return err
	}

	return s.ServerStream.SendMsg(m)
}
