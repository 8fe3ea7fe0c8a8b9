package handler

import (
	"context"
	"encoding/json"
	"math"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const CatalogServiceName = "storefront.v1.CatalogService"

// CatalogServer is the read-only catalog API. Requests and responses are
// google.protobuf.Struct documents shaped like the HTTP API's JSON.
type CatalogServer interface {
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListCategories(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: listProductsHandler},
		{MethodName: "ListCategories", Handler: listCategoriesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/catalog.proto",
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

type GRPCHandler struct {
	catalog *service.CatalogService
}

func NewGRPCHandler(catalog *service.CatalogService) *GRPCHandler {
	return &GRPCHandler{catalog: catalog}
}

// ListProducts runs a stateless query. Recognised fields: category, search,
// minPrice, maxPrice (number or numeric string) and page (default 1).
func (h *GRPCHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := h.catalog.DefaultFilter()
	page := 1

	for name, v := range req.GetFields() {
		switch name {
		case "category":
			f.Category = v.GetStringValue()
		case "search":
			f.Search = v.GetStringValue()
		case "minPrice":
			bound, err := priceValue(v, domain.ParseMinPrice)
			if err != nil {
				return nil, err
			}
			f.MinPrice = bound
		case "maxPrice":
			bound, err := priceValue(v, func(raw string) decimal.Decimal {
				return domain.ParseMaxPrice(raw, h.catalog.PriceCeiling())
			})
			if err != nil {
				return nil, err
			}
			f.MaxPrice = bound
		case "page":
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
				return nil, status.Error(codes.InvalidArgument, "page must be an integer")
			}
			page = pageNumber(n.NumberValue)
		default:
			return nil, status.Errorf(codes.InvalidArgument, "unknown field %q", name)
		}
	}

	return toStruct(h.catalog.Query(ctx, f, page))
}

func (h *GRPCHandler) ListCategories(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string][]string{"categories": h.catalog.Categories()})
}

// UnaryLogger logs every unary call at debug level, and failures at warn.
func UnaryLogger(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("grpc call failed")
		} else {
			entry.Debug("grpc call")
		}
		return resp, err
	}
}

// UnaryRecoverer turns a panicking handler into codes.Internal so one bad call
// cannot take the server down.
func UnaryRecoverer(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.WithFields(logrus.Fields{
					"method": info.FullMethod,
					"panic":  p,
					"stack":  string(debug.Stack()),
				}).Error("grpc handler panicked")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// pageNumber clamps an integral JSON number into the int range. Anything past
// the last page is empty anyway.
func pageNumber(x float64) int {
	switch {
	case x >= float64(math.MaxInt):
		return math.MaxInt
	case x <= float64(math.MinInt):
		return math.MinInt
	default:
		return int(x)
	}
}

// priceValue reads a bound the same way the HTTP query string is read, so a
// zero or unparsable value falls back to the default bound.
func priceValue(v *structpb.Value, parse func(string) decimal.Decimal) (decimal.Decimal, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return parse(strconv.FormatFloat(k.NumberValue, 'f', -1, 64)), nil
	case *structpb.Value_StringValue:
		return parse(k.StringValue), nil
	default:
		return decimal.Zero, status.Error(codes.InvalidArgument, "price bounds must be numbers or numeric strings")
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func listProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).ListProducts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + CatalogServiceName + "/ListProducts",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).ListProducts(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listCategoriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).ListCategories(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + CatalogServiceName + "/ListCategories",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).ListCategories(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
