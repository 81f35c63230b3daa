package grpc

import (
	"context"
	"errors"

	"github.com/wyfcoding/fxoption/internal/fxoption/application"
	"github.com/wyfcoding/fxoption/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server gRPC 服务实现
// 负责把 Struct 请求转换为应用层命令，并把结果编码回 Struct
type Server struct {
	app *application.FXOptionService
}

var _ FXOptionServiceServer = (*Server)(nil)

// NewServer 创建服务实现并注册到 s
func NewServer(s grpc.ServiceRegistrar, app *application.FXOptionService) *Server {
	srv := &Server{app: app}
	RegisterFXOptionServiceServer(s, srv)
	return srv
}

// GetDefaults 返回默认参数
func (s *Server) GetDefaults(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(s.app.Defaults())
}

// PriceOption 单个期权定价
func (s *Server) PriceOption(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.PriceOptionCommand
	if err := DecodeStruct(req, &cmd); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	quote, err := s.app.PriceOption(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encode(quote)
}

// GenerateChain 生成期权链
func (s *Server) GenerateChain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.GenerateChainCommand
	if err := DecodeStruct(req, &cmd); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	chain, err := s.app.GenerateChain(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encode(chain)
}

// Calculate 期权计算器
func (s *Server) Calculate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.CalculateCommand
	if err := DecodeStruct(req, &cmd); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	quote, err := s.app.Calculate(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encode(quote)
}

// BatchPriceOptions 批量定价
func (s *Server) BatchPriceOptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.BatchPriceOptionsCommand
	if err := DecodeStruct(req, &cmd); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.app.BatchPriceOptions(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encode(res)
}

// StreamChain 先生成完整期权链，再逐行推送，最后推送不含行的汇总
func (s *Server) StreamChain(req *structpb.Struct, stream FXOptionService_StreamChainServer) error {
	ctx := stream.Context()
	var cmd application.GenerateChainCommand
	if err := DecodeStruct(req, &cmd); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	chain, err := s.app.GenerateChain(ctx, cmd)
	if err != nil {
		return toStatus(ctx, err)
	}

	for _, row := range chain.Rows {
		if err := ctx.Err(); err != nil {
			return toStatus(ctx, err)
		}
		msg, err := encode(row)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}

	summary := *chain
	summary.Rows, summary.ATM, summary.ITM, summary.OTM = nil, nil, nil, nil
	msg, err := encode(summary)
	if err != nil {
		return err
	}
	return stream.Send(msg)
}

func encode(v any) (*structpb.Struct, error) {
	out, err := EncodeStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus 把应用层错误映射为 gRPC 状态码
func toStatus(ctx context.Context, err error) error {
	switch {
	case application.IsValidationError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		logger.Error(ctx, "fxoption request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
