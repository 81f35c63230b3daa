// 包 远程外汇期权服务客户端
package client

import (
	"context"
	"fmt"

	"github.com/wyfcoding/fxoption/internal/fxoption/application"
	fxgrpc "github.com/wyfcoding/fxoption/internal/fxoption/interfaces/grpc"
	"github.com/wyfcoding/fxoption/pkg/grpcclient"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// FXOptionClient 通过 gRPC 调用远程 fxoption 服务，返回与本地服务相同的 DTO
type FXOptionClient struct {
	conn   *grpc.ClientConn
	client fxgrpc.FXOptionServiceClient
}

// NewFXOptionClient 创建远程客户端
func NewFXOptionClient(cfg grpcclient.ClientConfig) (*FXOptionClient, error) {
	conn, err := grpcclient.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create fxoption service client: %w", err)
	}
	return &FXOptionClient{conn: conn, client: fxgrpc.NewFXOptionServiceClient(conn)}, nil
}

// NewFXOptionClientFromConn 从现有连接创建客户端
func NewFXOptionClientFromConn(cc grpc.ClientConnInterface) *FXOptionClient {
	return &FXOptionClient{client: fxgrpc.NewFXOptionServiceClient(cc)}
}

// Close 关闭自建的连接
func (c *FXOptionClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Defaults 获取服务端默认参数
func (c *FXOptionClient) Defaults(ctx context.Context) (*application.DefaultsDTO, error) {
	var out application.DefaultsDTO
	if err := c.call(ctx, c.client.GetDefaults, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PriceOption 远程单个期权定价
func (c *FXOptionClient) PriceOption(ctx context.Context, cmd application.PriceOptionCommand) (*application.OptionQuoteDTO, error) {
	var out application.OptionQuoteDTO
	if err := c.call(ctx, c.client.PriceOption, cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateChain 远程生成期权链
func (c *FXOptionClient) GenerateChain(ctx context.Context, cmd application.GenerateChainCommand) (*application.ChainDTO, error) {
	var out application.ChainDTO
	if err := c.call(ctx, c.client.GenerateChain, cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Calculate 远程计算器
func (c *FXOptionClient) Calculate(ctx context.Context, cmd application.CalculateCommand) (*application.OptionQuoteDTO, error) {
	var out application.OptionQuoteDTO
	if err := c.call(ctx, c.client.Calculate, cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type unaryCall func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func (c *FXOptionClient) call(ctx context.Context, fn unaryCall, in, out any) error {
	req, err := fxgrpc.EncodeStruct(in)
	if err != nil {
		return err
	}
	resp, err := fn(ctx, req)
	if err != nil {
		return err
	}
	return fxgrpc.DecodeStruct(resp, out)
}
