package grpcapi

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const RoleAdmin = "admin"

type identityKey struct{}

type identity struct {
	userID string
	role   string
}

var adminMethods = map[string]bool{
	"/" + ServiceName + "/RefundOrder": true,
	"/" + ServiceName + "/RunSweep":    true,
	"/" + ServiceName + "/PurgeEvents": true,
}

// AuthInterceptor validates the bearer token in the "authorization" metadata
// for MarketService calls. Other services (health) pass through.
func AuthInterceptor(secret string) grpc.UnaryServerInterceptor {
	key := []byte(secret)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		token, err := jwt.Parse(strings.TrimPrefix(values[0], "Bearer "), func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return nil, status.Error(codes.Unauthenticated, "token has no subject")
		}

		id := identity{userID: sub}
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			id.role, _ = claims["role"].(string)
		}
		if adminMethods[info.FullMethod] && id.role != RoleAdmin {
			return nil, status.Error(codes.PermissionDenied, "insufficient role")
		}
		return handler(context.WithValue(ctx, identityKey{}, id), req)
	}
}

func callerID(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id.userID
}
