package grpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"notes-sync-service/internal/converter"
	"notes-sync-service/internal/events"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/logger"
	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository"
	svc "notes-sync-service/internal/service"
)

// errorDomain домен ошибок в errdetails.ErrorInfo
const errorDomain = "notes.v1"

var _ NotesServiceServer = (*Handler)(nil)

// Handler реализует gRPC сервер для NotesService
type Handler struct {
	noteService svc.NoteService
	watch       *inmem.Broker
	topic       string
	logger      *zap.Logger

	// Контекст сервера: при его отмене стримы завершаются до GracefulStop
	serverCtx context.Context
}

// NewHandler создает новый экземпляр gRPC хэндлера.
// watch - локальная копия канала событий для WatchNotes, может быть nil.
func NewHandler(noteService svc.NoteService, watch *inmem.Broker, topic string, serverCtx context.Context, l *zap.Logger) *Handler {
	if serverCtx == nil {
		serverCtx = context.Background()
	}
	return &Handler{
		noteService: noteService,
		watch:       watch,
		topic:       topic,
		serverCtx:   serverCtx,
		logger:      logger.OrNop(l),
	}
}

// CreateNote создает новую заметку
func (h *Handler) CreateNote(ctx context.Context, req *CreateNoteRequest) (*CreateNoteResponse, error) {
	note, err := h.noteService.Create(ctx, model.NotePayload{Title: req.Title, Content: req.Content})
	if err != nil {
		return nil, h.handleError(err)
	}
	return &CreateNoteResponse{Note: converter.ModelToDTO(note)}, nil
}

// GetNote возвращает заметку по её ID
func (h *Handler) GetNote(ctx context.Context, req *GetNoteRequest) (*GetNoteResponse, error) {
	note, err := h.noteService.Get(ctx, req.ID)
	if err != nil {
		return nil, h.handleError(err)
	}
	return &GetNoteResponse{Note: converter.ModelToDTO(note)}, nil
}

// ListNotes возвращает список всех заметок
func (h *Handler) ListNotes(ctx context.Context, _ *ListNotesRequest) (*ListNotesResponse, error) {
	notes, err := h.noteService.List(ctx)
	if err != nil {
		return nil, h.handleError(err)
	}
	return &ListNotesResponse{Notes: converter.ModelsToDTOs(notes)}, nil
}

// UpdateNote обновляет существующую заметку
func (h *Handler) UpdateNote(ctx context.Context, req *UpdateNoteRequest) (*UpdateNoteResponse, error) {
	payload := model.NotePayload{Title: req.Title, Content: req.Content}
	note, err := h.noteService.Update(ctx, req.ID, payload, req.Partial)
	if err != nil {
		return nil, h.handleError(err)
	}
	return &UpdateNoteResponse{Note: converter.ModelToDTO(note)}, nil
}

// DeleteNote удаляет заметку по ID
func (h *Handler) DeleteNote(ctx context.Context, req *DeleteNoteRequest) (*DeleteNoteResponse, error) {
	if err := h.noteService.Delete(ctx, req.ID); err != nil {
		return nil, h.handleError(err)
	}
	return &DeleteNoteResponse{}, nil
}

// SearchNotes ищет заметки в поисковой проекции
func (h *Handler) SearchNotes(ctx context.Context, req *SearchNotesRequest) (*SearchNotesResponse, error) {
	docs, err := h.noteService.Search(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, h.handleError(err)
	}
	return &SearchNotesResponse{Hits: converter.DocumentsToHits(docs)}, nil
}

// WatchNotes транслирует клиенту события изменений заметок.
// Первое сообщение - subscribed: после него клиент гарантированно получит все последующие события.
func (h *Handler) WatchNotes(_ *WatchNotesRequest, stream NotesServiceWatchNotesServer) error {
	if h.watch == nil {
		return status.Error(codes.Unavailable, "watch is not configured")
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	stop := context.AfterFunc(h.serverCtx, cancel)
	defer stop()

	sub := h.watch.Subscribe(h.topic)
	defer sub.Close()

	welcome := converter.SubscribedEvent(time.Now())
	if err := stream.Send(&welcome); err != nil {
		return err
	}

	for {
		msg, err := sub.Fetch(ctx)
		if err != nil {
			if errors.Is(err, events.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return status.Error(codes.Internal, err.Error())
		}

		ev, err := events.Decode(msg.Value)
		if err != nil {
			h.logger.Warn("skipping undecodable watch event", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		msgOut := converter.EventToDTO(ev)
		if err := stream.Send(&msgOut); err != nil {
			return err
		}
	}
}

// handleError конвертирует внутренние ошибки в gRPC статусы с детализацией
func (h *Handler) handleError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		st := status.New(codes.InvalidArgument, err.Error())
		return withDetails(st, &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{
				{Field: vErr.Field, Description: vErr.Reason},
			},
		})

	case errors.Is(err, repository.ErrNoteNotFound):
		st := status.New(codes.NotFound, "note not found")
		return withDetails(st, &errdetails.ErrorInfo{Reason: "NOTE_NOT_FOUND", Domain: errorDomain})

	case errors.Is(err, repository.ErrConflict):
		st := status.New(codes.Aborted, err.Error())
		return withDetails(st, &errdetails.ErrorInfo{Reason: "NOTE_CONFLICT", Domain: errorDomain})

	case errors.Is(err, svc.ErrSearchDisabled):
		st := status.New(codes.FailedPrecondition, err.Error())
		return withDetails(st, &errdetails.ErrorInfo{Reason: "SEARCH_DISABLED", Domain: errorDomain})

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	// Детали внутренних ошибок клиенту не отдаем
	h.logger.Error("request failed", zap.Error(err))
	st := status.New(codes.Internal, "internal error")
	return withDetails(st, &errdetails.ErrorInfo{
		Reason: "INTERNAL_ERROR",
		Domain: errorDomain,
	})
}

// withDetails прикладывает детали к статусу. Если сериализовать их не удалось, возвращается статус без деталей.
func withDetails(st *status.Status, details ...protoadapt.MessageV1) error {
	detailed, err := st.WithDetails(details...)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
