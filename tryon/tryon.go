// Package tryon runs one try-on end to end: inputs, landmarks, composite,
// score, uploads, history.
package tryon

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/raushankrgupta/fashionfit/account"
	"github.com/raushankrgupta/fashionfit/capture"
	"github.com/raushankrgupta/fashionfit/catalog"
	"github.com/raushankrgupta/fashionfit/compositor"
	"github.com/raushankrgupta/fashionfit/garment"
	"github.com/raushankrgupta/fashionfit/landmarks"
	"github.com/raushankrgupta/fashionfit/logging"
	"github.com/raushankrgupta/fashionfit/media"
	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/notify"
	"github.com/raushankrgupta/fashionfit/recommend"
	"github.com/raushankrgupta/fashionfit/store"
)

var (
	ErrInProgress        = errors.New("a try-on is already running for this user")
	ErrMissingPhoto      = errors.New("a photo is required")
	ErrMissingGarment    = errors.New("a garment image is required")
	ErrHairstyleMismatch = errors.New("hairstyle is not offered for this user")
)

// IsInputError reports whether err was caused by the request rather than by
// the service.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrMissingPhoto, ErrMissingGarment, ErrHairstyleMismatch,
		catalog.ErrUnknownHairstyle,
		compositor.ErrUnsupportedImage, compositor.ErrImageTooLarge,
		garment.ErrInvalidURL, garment.ErrNoImage, garment.ErrTooLarge,
		landmarks.ErrInvalidLandmarks,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Request is one try-on. Exactly one photo source and one garment source are used.
type Request struct {
	RequestID string

	Photo     []byte
	UseCamera bool

	Garment    []byte
	GarmentURL string

	HairstyleID string
	// Landmarks computed by the client; when nil the configured provider runs.
	Landmarks *landmarks.Landmarks
}

type Result struct {
	Session        models.TryOnSession     `json:"session"`
	Report         compositor.Report       `json:"report"`
	Recommendation models.AIRecommendation `json:"recommendation"`
	MergedImageURL string                  `json:"merged_image_url"`
}

// ImageSource downloads garment and hairstyle images.
type ImageSource interface {
	Resolve(ctx context.Context, url string) (*garment.Image, error)
	FetchImage(ctx context.Context, url string) (*garment.Image, error)
}

type Deps struct {
	Provider  landmarks.Provider
	Evaluator recommend.Evaluator
	Media     media.Storage
	Sessions  store.Sessions
	Images    ImageSource
	Camera    capture.Camera
	Notifier  notify.Notifier
	Logger    *zap.Logger

	RecommendTimeout time.Duration
}

type Service struct {
	deps      Deps
	evaluator recommend.Evaluator
	logger    *zap.Logger

	mu     sync.Mutex
	guards map[string]*semaphore.Weighted
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Provider == nil {
		deps.Provider = landmarks.None{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.Evaluator == nil {
		deps.Evaluator = recommend.Unavailable(recommend.ErrMissingAPIKey)
	}
	return &Service{
		deps:      deps,
		evaluator: recommend.WithFallback(deps.Evaluator, deps.RecommendTimeout, logger),
		logger:    logger,
		guards:    make(map[string]*semaphore.Weighted),
	}
}

// guard is the single in-flight slot of a user.
func (s *Service) guard(uid string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guards[uid]
	if !ok {
		g = semaphore.NewWeighted(1)
		s.guards[uid] = g
	}
	return g
}

type decoded struct {
	img         image.Image
	data        []byte
	contentType string
}

// Run executes the pipeline. A second Run for the same user fails with
// ErrInProgress until the first returns. Failures after input validation are
// *logging.OperationError values naming the step.
func (s *Service) Run(ctx context.Context, sess account.Session, req Request) (*Result, error) {
	uid := sess.User.UID
	g := s.guard(uid)
	if !g.TryAcquire(1) {
		return nil, ErrInProgress
	}
	defer g.Release(1)

	log := logging.WithOperation(s.logger, "tryon.run", req.RequestID).With(zap.String("user_id", uid))
	start := time.Now()

	var hair *models.Hairstyle
	if req.HairstyleID != "" {
		h, err := catalog.Hairstyle(req.HairstyleID)
		if err != nil {
			return nil, err
		}
		if h.Gender != sess.User.Gender {
			return nil, ErrHairstyleMismatch
		}
		hair = &h
	}

	photoBytes := req.Photo
	if req.UseCamera {
		frame, err := capture.Capture(ctx, s.deps.Camera)
		if err != nil {
			log.Warn("camera capture failed", zap.Error(err))
			return nil, err
		}
		photoBytes = frame.Data
	}
	if len(photoBytes) == 0 {
		return nil, ErrMissingPhoto
	}
	if len(req.Garment) == 0 && req.GarmentURL == "" {
		return nil, ErrMissingGarment
	}

	photo, garmentImg, hairImg, err := s.decodeInputs(ctx, photoBytes, req, hair)
	if err != nil {
		return nil, logging.NewOperationError("tryon.decode", req.RequestID, err)
	}

	lm, err := s.landmarks(ctx, photo.img, req.Landmarks, log)
	if err != nil {
		return nil, logging.NewOperationError("tryon.landmarks", req.RequestID, err)
	}

	var hairLayer image.Image
	if hairImg != nil {
		hairLayer = hairImg.img
	}
	merged, report := compositor.Composite(photo.img, garmentImg.img, hairLayer, lm)
	mergedPNG, err := compositor.EncodePNG(merged)
	if err != nil {
		return nil, logging.NewOperationError("tryon.encode", req.RequestID, err)
	}
	if !report.Garment.Drawn {
		log.Info("garment overlay skipped", zap.String("reason", report.Garment.Reason))
	}

	rec, _ := s.evaluator.Evaluate(ctx, mergedPNG, sess.User.Gender)

	refs, err := s.upload(ctx, photo, garmentImg, mergedPNG)
	if err != nil {
		return nil, logging.NewOperationError("tryon.upload", req.RequestID, err)
	}

	in := models.NewTryOn{
		UserID:         uid,
		UserImageURL:   refs[0],
		DressImageURL:  refs[1],
		MergedImageURL: refs[2],
		Recommendation: &rec,
	}
	if hair != nil {
		in.HairstyleID = hair.ID
	}
	saved, err := s.deps.Sessions.Save(ctx, in)
	if err != nil {
		return nil, logging.NewOperationError("tryon.save", req.RequestID, err)
	}

	mergedURL := media.ResolveURL(ctx, s.deps.Media, saved.MergedImageURL)
	if err := s.deps.Notifier.TryOnReady(ctx, sess.User, saved, mergedURL); err != nil {
		log.Warn("try-on notification failed", zap.Error(err))
	}

	log.Info("try-on complete",
		zap.String("session_id", saved.ID),
		zap.Bool("garment_drawn", report.Garment.Drawn),
		zap.Bool("hair_drawn", report.Hair.Drawn),
		zap.Float64("score", rec.Score),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{Session: saved, Report: report, Recommendation: rec, MergedImageURL: mergedURL}, nil
}

// decodeInputs loads the photo, garment and hairstyle concurrently.
func (s *Service) decodeInputs(ctx context.Context, photoBytes []byte, req Request, hair *models.Hairstyle) (photo, garmentImg, hairImg *decoded, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d, err := decode(photoBytes)
		photo = d
		return err
	})

	g.Go(func() error {
		data := req.Garment
		if len(data) == 0 {
			img, err := s.deps.Images.Resolve(gctx, req.GarmentURL)
			if err != nil {
				return err
			}
			data = img.Data
		}
		d, err := decode(data)
		garmentImg = d
		return err
	})

	if hair != nil {
		g.Go(func() error {
			img, err := s.deps.Images.FetchImage(gctx, hair.ImageURL)
			if err != nil {
				return err
			}
			d, err := decode(img.Data)
			hairImg = d
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return photo, garmentImg, hairImg, nil
}

func decode(data []byte) (*decoded, error) {
	img, format, err := compositor.Decode(data)
	if err != nil {
		return nil, err
	}
	return &decoded{img: img, data: data, contentType: "image/" + format}, nil
}

func (s *Service) landmarks(ctx context.Context, photo image.Image, supplied *landmarks.Landmarks, log *zap.Logger) (landmarks.Landmarks, error) {
	if supplied != nil {
		if err := supplied.Validate(); err != nil {
			return landmarks.Landmarks{}, err
		}
		return *supplied, nil
	}

	lm, err := s.deps.Provider.Detect(ctx, photo)
	if err != nil {
		if ctx.Err() != nil {
			return landmarks.Landmarks{}, ctx.Err()
		}
		log.Warn("landmark detection failed, overlays will be skipped", zap.Error(err))
		return landmarks.Landmarks{}, nil
	}
	return lm, nil
}

// upload stores photo, garment and composite and returns their references in that order.
func (s *Service) upload(ctx context.Context, photo, garmentImg *decoded, mergedPNG []byte) ([3]string, error) {
	var refs [3]string
	items := [3]struct {
		folder, contentType string
		data                []byte
	}{
		{media.FolderPhotos, photo.contentType, photo.data},
		{media.FolderGarments, garmentImg.contentType, garmentImg.data},
		{media.FolderComposites, "image/png", mergedPNG},
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			ref, err := s.deps.Media.Put(gctx, media.NewKey(item.folder, media.Extension(item.contentType)), item.data, item.contentType)
			refs[i] = ref
			return err
		})
	}
	return refs, g.Wait()
}
