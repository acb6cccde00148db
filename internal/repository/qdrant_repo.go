package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mira/outfitadvisor/internal/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 768

	// readinessPollInterval is the fixed delay between collection status
	// checks while waiting for the index to become ready.
	readinessPollInterval = time.Second
)

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds the API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository is the retrieval client for the product vector index.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// WaitReady polls the collection status with a fixed delay until it reports
// green, the context is cancelled, or the deadline elapses. Expiry fails
// with domain.ErrIndexNotReady.
func (r *QdrantRepository) WaitReady(ctx context.Context, deadline time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		info, err := r.collectClient.Get(waitCtx, &pb.GetCollectionInfoRequest{
			CollectionName: r.collectionName,
		})
		if err == nil && info.GetResult().GetStatus() == pb.CollectionStatus_Green {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: collection %s not ready after %s", domain.ErrIndexNotReady, r.collectionName, deadline)
		case <-time.After(readinessPollInterval):
		}
	}
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	return 0, false
}

// Payload keys stored with each product vector. The names follow the
// catalog's metadata convention.
const (
	payloadProductID   = "product_id"
	payloadImageURL    = "image_url"
	payloadDisplayName = "productDisplayName"
	payloadCategory    = "category"
)

// ProductPayload is the metadata stored alongside each product vector.
type ProductPayload struct {
	ProductID   string `json:"product_id"`
	ImageURL    string `json:"image_url"`
	DisplayName string `json:"productDisplayName"`
	Category    string `json:"category"`
}

// Upsert inserts or updates a product vector with its payload.
func (r *QdrantRepository) Upsert(ctx context.Context, pointID string, vector []float32, payload *ProductPayload) error {
	uid, err := uuid.Parse(pointID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: map[string]*pb.Value{
				payloadProductID:   {Kind: &pb.Value_StringValue{StringValue: payload.ProductID}},
				payloadImageURL:    {Kind: &pb.Value_StringValue{StringValue: payload.ImageURL}},
				payloadDisplayName: {Kind: &pb.Value_StringValue{StringValue: payload.DisplayName}},
				payloadCategory:    {Kind: &pb.Value_StringValue{StringValue: payload.Category}},
			},
		},
	}

	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// Search performs a vector similarity search and returns up to topK catalog
// matches in the index's own rank order. Missing metadata fields are filled
// with the documented placeholders; an empty result set is not an error.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]domain.CatalogMatch, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vector search failed: %v", domain.ErrUpstream, err)
	}

	matches := make([]domain.CatalogMatch, len(resp.Result))
	for i, scored := range resp.Result {
		matches[i] = matchFromPayload(scored.Id.GetUuid(), scored.Payload)
	}

	return matches, nil
}

// matchFromPayload builds a CatalogMatch from a scored point, substituting
// placeholders for absent metadata rather than dropping the match.
func matchFromPayload(id string, payload map[string]*pb.Value) domain.CatalogMatch {
	match := domain.CatalogMatch{
		ID:          id,
		ImageURL:    domain.PlaceholderImageURL,
		ProductName: domain.PlaceholderProductName,
	}

	if payload == nil {
		return match
	}
	if v, ok := payload[payloadProductID]; ok && v.GetStringValue() != "" {
		match.ID = v.GetStringValue()
	}
	if v, ok := payload[payloadImageURL]; ok && v.GetStringValue() != "" {
		match.ImageURL = v.GetStringValue()
	}
	if v, ok := payload[payloadDisplayName]; ok && v.GetStringValue() != "" {
		match.ProductName = v.GetStringValue()
	}

	return match
}

// Delete deletes a point by ID.
func (r *QdrantRepository) Delete(ctx context.Context, pointID string) error {
	uid, err := uuid.Parse(pointID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
