package tryon

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raushankrgupta/fashionfit/account"
	"github.com/raushankrgupta/fashionfit/capture"
	"github.com/raushankrgupta/fashionfit/catalog"
	"github.com/raushankrgupta/fashionfit/compositor"
	"github.com/raushankrgupta/fashionfit/garment"
	"github.com/raushankrgupta/fashionfit/kv"
	"github.com/raushankrgupta/fashionfit/landmarks"
	"github.com/raushankrgupta/fashionfit/logging"
	"github.com/raushankrgupta/fashionfit/media"
	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/recommend"
	"github.com/raushankrgupta/fashionfit/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func body() *landmarks.Landmarks {
	pose := make([]landmarks.Point, 33)
	pose[landmarks.PoseLeftShoulder] = landmarks.Point{X: 0.3, Y: 0.3}
	pose[landmarks.PoseRightShoulder] = landmarks.Point{X: 0.7, Y: 0.3}
	pose[landmarks.PoseLeftHip] = landmarks.Point{X: 0.3, Y: 0.6}
	pose[landmarks.PoseRightHip] = landmarks.Point{X: 0.7, Y: 0.6}
	return &landmarks.Landmarks{Pose: pose}
}

type fakeImages struct {
	data    []byte
	fetched []string
	mu      sync.Mutex
}

func (f *fakeImages) Resolve(_ context.Context, url string) (*garment.Image, error) {
	return f.FetchImage(context.Background(), url)
}

func (f *fakeImages) FetchImage(_ context.Context, url string) (*garment.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if f.data == nil {
		return nil, garment.ErrNoImage
	}
	return &garment.Image{Data: f.data, ContentType: "image/png", SourceURL: url}, nil
}

type fixture struct {
	svc      *Service
	sessions *store.BlobSessions
	images   *fakeImages
	mediaDir string
}

func newFixture(t *testing.T, ev recommend.Evaluator, mutate func(*Deps)) *fixture {
	t.Helper()
	dir := t.TempDir()
	local, err := media.NewLocal(dir, "/media/")
	require.NoError(t, err)

	f := &fixture{
		sessions: store.NewBlobSessions(kv.NewMemory()),
		images:   &fakeImages{data: pngOf(t, 20, 20, color.RGBA{0, 255, 0, 255})},
		mediaDir: dir,
	}
	deps := Deps{
		Evaluator:        ev,
		Media:            local,
		Sessions:         f.sessions,
		Images:           f.images,
		RecommendTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.svc = NewService(deps)
	return f
}

func scoring(score float64) recommend.Evaluator {
	return recommend.EvaluatorFunc(func(context.Context, []byte, models.Gender) (models.AIRecommendation, error) {
		return models.AIRecommendation{Score: score, Feedback: "Looks sharp."}, nil
	})
}

func userSession(g models.Gender) account.Session {
	return account.Session{User: models.UserProfile{UID: "user_1", Email: "a@example.com", Gender: g}}
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t, scoring(91), nil)

	res, err := f.svc.Run(context.Background(), userSession(models.GenderFemale), Request{
		Photo:       pngOf(t, 400, 600, color.RGBA{0, 0, 255, 255}),
		Garment:     pngOf(t, 50, 80, color.RGBA{255, 0, 0, 255}),
		HairstyleID: "f1",
		Landmarks:   body(),
	})
	require.NoError(t, err)

	assert.True(t, res.Report.Garment.Drawn)
	assert.False(t, res.Report.Hair.Drawn, "no face mesh supplied")
	assert.Equal(t, models.AIRecommendation{Score: 91, Feedback: "Looks sharp."}, res.Recommendation)
	assert.Equal(t, "/media/"+res.Session.MergedImageURL, res.MergedImageURL)

	h, _ := catalog.Hairstyle("f1")
	assert.Equal(t, []string{h.ImageURL}, f.images.fetched)

	list, err := f.sessions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	saved := list[0]
	assert.Equal(t, "user_1", saved.UserID)
	assert.Equal(t, "f1", saved.HairstyleID)
	require.NotNil(t, saved.Recommendation)
	assert.Equal(t, 91.0, saved.Recommendation.Score)

	for _, ref := range []string{saved.UserImageURL, saved.DressImageURL, saved.MergedImageURL} {
		_, err := os.Stat(filepath.Join(f.mediaDir, filepath.FromSlash(ref)))
		assert.NoError(t, err, ref)
	}

	data, err := os.ReadFile(filepath.Join(f.mediaDir, filepath.FromSlash(saved.MergedImageURL)))
	require.NoError(t, err)
	merged, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 600), merged.Bounds())
}

func TestRun_GarmentURLAndProviderFallback(t *testing.T) {
	f := newFixture(t, scoring(50), func(d *Deps) {
		d.Provider = landmarks.Static{Landmarks: *body()}
	})

	res, err := f.svc.Run(context.Background(), userSession(models.GenderMale), Request{
		Photo:      pngOf(t, 100, 100, color.White),
		GarmentURL: "https://shop.example.com/p/1",
	})
	require.NoError(t, err)
	assert.True(t, res.Report.Garment.Drawn)
	assert.Equal(t, []string{"https://shop.example.com/p/1"}, f.images.fetched)
}

func TestRun_MalformedRecommendationUsesFallback(t *testing.T) {
	malformed := recommend.EvaluatorFunc(func(context.Context, []byte, models.Gender) (models.AIRecommendation, error) {
		return recommend.Parse(`{"feedback": "no score"}`)
	})
	f := newFixture(t, malformed, nil)

	res, err := f.svc.Run(context.Background(), userSession(models.GenderMale), Request{
		Photo:   pngOf(t, 10, 10, color.White),
		Garment: pngOf(t, 10, 10, color.Black),
	})
	require.NoError(t, err)
	assert.Equal(t, recommend.Fallback(), res.Recommendation)
	assert.Equal(t, compositor.ReasonNoLandmarks, res.Report.Garment.Reason)
}

func TestRun_InProgressGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := recommend.EvaluatorFunc(func(ctx context.Context, _ []byte, _ models.Gender) (models.AIRecommendation, error) {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return models.AIRecommendation{Score: 70, Feedback: "ok"}, nil
	})
	f := newFixture(t, blocking, nil)

	req := Request{Photo: pngOf(t, 10, 10, color.White), Garment: pngOf(t, 10, 10, color.Black)}
	sess := userSession(models.GenderMale)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Run(context.Background(), sess, req)
		done <- err
	}()
	<-entered

	_, err := f.svc.Run(context.Background(), sess, req)
	assert.ErrorIs(t, err, ErrInProgress)

	assert.True(t, f.svc.guard("user_2").TryAcquire(1), "other users are not blocked")
	f.svc.guard("user_2").Release(1)

	close(release)
	require.NoError(t, <-done)

	// The slot is free again once the first run returned.
	f.svc.evaluator = recommend.WithFallback(scoring(60), time.Second, nil)
	_, err = f.svc.Run(context.Background(), sess, req)
	assert.NoError(t, err)
}

type failingSessions struct{}

func (failingSessions) Save(context.Context, models.NewTryOn) (models.TryOnSession, error) {
	return models.TryOnSession{}, errors.New("disk full")
}

func (failingSessions) List(context.Context) ([]models.TryOnSession, error) {
	return []models.TryOnSession{}, nil
}

func TestRun_PipelineErrorReleasesGuard(t *testing.T) {
	f := newFixture(t, scoring(60), func(d *Deps) { d.Sessions = failingSessions{} })
	req := Request{RequestID: "req-9", Photo: pngOf(t, 10, 10, color.White), Garment: pngOf(t, 10, 10, color.Black)}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Run(context.Background(), userSession(models.GenderMale), req)
		var opErr *logging.OperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "tryon.save", opErr.Operation)
		assert.Equal(t, "req-9", opErr.RequestID)
		assert.False(t, IsInputError(err))
	}
}

func TestRun_InputErrors(t *testing.T) {
	f := newFixture(t, scoring(60), nil)
	photo := pngOf(t, 10, 10, color.White)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, userSession(models.GenderMale), Request{Garment: photo})
	assert.ErrorIs(t, err, ErrMissingPhoto)

	_, err = f.svc.Run(ctx, userSession(models.GenderMale), Request{Photo: photo})
	assert.ErrorIs(t, err, ErrMissingGarment)

	_, err = f.svc.Run(ctx, userSession(models.GenderMale), Request{Photo: photo, Garment: photo, HairstyleID: "f2"})
	assert.ErrorIs(t, err, ErrHairstyleMismatch)

	_, err = f.svc.Run(ctx, userSession(models.GenderMale), Request{Photo: photo, Garment: photo, HairstyleID: "zz"})
	assert.ErrorIs(t, err, catalog.ErrUnknownHairstyle)

	_, err = f.svc.Run(ctx, userSession(models.GenderMale), Request{Photo: []byte("not an image"), Garment: photo})
	assert.True(t, IsInputError(err), "%v", err)

	f.images.data = nil
	_, err = f.svc.Run(ctx, userSession(models.GenderMale), Request{Photo: photo, GarmentURL: "https://x"})
	assert.ErrorIs(t, err, garment.ErrNoImage)
	assert.True(t, IsInputError(err))

	list, err := f.sessions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type deniedCamera struct{}

func (deniedCamera) Open(context.Context) (capture.Stream, error) {
	return nil, capture.ErrPermissionDenied
}

func TestRun_CameraDenied(t *testing.T) {
	f := newFixture(t, scoring(60), func(d *Deps) { d.Camera = deniedCamera{} })

	_, err := f.svc.Run(context.Background(), userSession(models.GenderMale), Request{
		UseCamera: true,
		Garment:   pngOf(t, 10, 10, color.Black),
	})
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
}
