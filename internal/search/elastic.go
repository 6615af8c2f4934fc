package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"notes-sync-service/internal/logger"
)

var _ Index = (*ElasticIndex)(nil)

const (
	// upsertVersionType принимает только строго более новую версию. Равная версия разбирается в Upsert.
	upsertVersionType = "external"
	// deleteVersionType разрешает надгробию перезаписать документ той же версии
	deleteVersionType = "external_gte"
)

// tombstoneBody тело надгробия. Удаленный документ остается в индексе с версией удаления.
const tombstoneBody = `{"deleted":true}`

// ElasticOptions параметры подключения к Elasticsearch
type ElasticOptions struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// ElasticIndex индекс заметок в Elasticsearch
type ElasticIndex struct {
	es     *elasticsearch.Client
	index  string
	logger *zap.Logger
}

// NewElasticIndex создает клиента. Сеть не используется до первого запроса.
func NewElasticIndex(opts ElasticOptions, log *zap.Logger) (*ElasticIndex, error) {
	if opts.Index == "" {
		opts.Index = "notes"
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}

	return &ElasticIndex{es: es, index: opts.Index, logger: logger.OrNop(log)}, nil
}

// EnsureIndex создает индекс с одним шардом без реплик, если его нет
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("indices.exists %s: %w", e.index, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("indices.exists %s: unexpected status %d", e.index, res.StatusCode)
	}

	mapping := `{
		"settings": {"number_of_shards": 1, "number_of_replicas": 0},
		"mappings": {
			"properties": {
				"title":      {"type": "text"},
				"content":    {"type": "text"},
				"created_at": {"type": "date"},
				"deleted":    {"type": "boolean"}
			}
		}
	}`

	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("indices.create %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("indices.create", res)
	}

	e.logger.Info("search index created", zap.String("index", e.index))
	return nil
}

// Version читает версию документа. Надгробие возвращается с Deleted.
func (e *ElasticIndex) Version(ctx context.Context, id string) (Version, error) {
	res, err := e.es.Get(e.index, id, e.es.Get.WithContext(ctx))
	if err != nil {
		return Version{}, fmt.Errorf("get %s/%s: %w", e.index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Version{}, nil
	}
	if res.IsError() {
		return Version{}, responseError("get", res)
	}

	var body struct {
		Version int64 `json:"_version"`
		Found   bool  `json:"found"`
		Source  struct {
			Deleted bool `json:"deleted"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Version{}, fmt.Errorf("decode get response: %w", err)
	}
	if !body.Found {
		return Version{}, nil
	}

	return Version{Value: body.Version, Deleted: body.Source.Deleted}, nil
}

// Upsert записывает документ строго более новой версии. Конфликт на равной версии
// допустим только для живого документа (повторная доставка), надгробие той же версии побеждает.
func (e *ElasticIndex) Upsert(ctx context.Context, doc Document, version int64) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	err = e.put(ctx, "index", doc.ID, payload, version, upsertVersionType)
	if !errors.Is(err, ErrStale) {
		return err
	}

	current, verr := e.Version(ctx, doc.ID)
	if verr != nil {
		return verr
	}
	if current.Value == version && !current.Deleted {
		return nil
	}
	return ErrStale
}

// Delete заменяет документ надгробием той же версии. Для отсутствующего документа надгробие тоже пишется.
func (e *ElasticIndex) Delete(ctx context.Context, id string, version int64) error {
	return e.put(ctx, "delete", id, []byte(tombstoneBody), version, deleteVersionType)
}

func (e *ElasticIndex) put(ctx context.Context, op, id string, body []byte, version int64, versionType string) error {
	res, err := e.es.Index(e.index, bytes.NewReader(body),
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(id),
		e.es.Index.WithVersion(int(version)),
		e.es.Index.WithVersionType(versionType),
	)
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, e.index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return ErrStale
	}
	if res.IsError() {
		return responseError(op, res)
	}
	return nil
}

func (e *ElasticIndex) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}

	req := map[string]any{"size": limit}
	var match map[string]any
	if q := strings.TrimSpace(query); q != "" {
		match = map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"title", "content"},
			},
		}
	} else {
		match = map[string]any{"match_all": map[string]any{}}
		req["sort"] = []any{map[string]any{"created_at": "desc"}}
	}
	// Надгробия в выдачу не попадают
	req["query"] = map[string]any{
		"bool": map[string]any{
			"must":     match,
			"must_not": map[string]any{"term": map[string]any{"deleted": true}},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var body struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]Document, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		doc := hit.Source
		doc.ID = hit.ID
		docs = append(docs, doc)
	}
	return docs, nil
}

func (e *ElasticIndex) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s: elasticsearch returned %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
}
