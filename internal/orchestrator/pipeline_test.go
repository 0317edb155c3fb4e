package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/Yates-Labs/storyteller/internal/apperr"
	"github.com/Yates-Labs/storyteller/internal/caption"
	"github.com/Yates-Labs/storyteller/internal/evaluate"
	"github.com/Yates-Labs/storyteller/internal/extract/extracttest"
	"github.com/Yates-Labs/storyteller/internal/narrative"
	"github.com/Yates-Labs/storyteller/internal/rag"
	"github.com/Yates-Labs/storyteller/internal/speech"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type mockCaptioner struct {
	result caption.Result
	calls  int
}

func (m *mockCaptioner) Caption(context.Context, []byte) caption.Result {
	m.calls++
	return m.result
}

type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([]rag.EmbeddingRecord, error) {
	records := make([]rag.EmbeddingRecord, len(texts))
	for i, text := range texts {
		vec := make([]float32, 16)
		for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
			h := fnv.New32a()
			h.Write([]byte(w))
			vec[h.Sum32()%16]++
		}
		records[i] = rag.EmbeddingRecord{Text: text, Embedding: vec, Index: i, Model: "words"}
	}
	return records, nil
}

func (wordEmbedder) GetModel() string  { return "words" }
func (wordEmbedder) GetDimension() int { return 16 }

type fixedLoss struct{ err error }

func (f fixedLoss) Loss(context.Context, string) (float64, error) { return 0.25, f.err }

type spaceLogProbs struct{}

func (spaceLogProbs) Tokenize(_ context.Context, text string) ([]evaluate.Token, error) {
	var tokens []evaluate.Token
	pos := 0
	for i, w := range strings.Split(text, " ") {
		tokens = append(tokens, evaluate.Token{ID: i, Text: w, Start: pos, Stop: pos + len(w)})
		pos += len(w) + 1
	}
	return tokens, nil
}

func (spaceLogProbs) PrefillLogProbs(_ context.Context, text string) ([]float64, error) {
	lps := make([]float64, len(strings.Split(text, " ")))
	for i := range lps {
		lps[i] = -2
	}
	return lps, nil
}

type fakeSpeaker struct {
	text string
	err  error
}

func (f *fakeSpeaker) Synthesize(_ context.Context, text string) (*speech.Audio, error) {
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return &speech.Audio{Data: []byte("fLaC"), ContentType: speech.DefaultContentType}, nil
}

type testPipeline struct {
	*Pipeline
	captioner *mockCaptioner
	remote    *narrative.MockLLM
	local     *narrative.MockLLM
	speaker   *fakeSpeaker
	opened    int
	closed    int
}

func newTestPipeline(t *testing.T, captionText string, storyText string) *testPipeline {
	t.Helper()

	tp := &testPipeline{
		captioner: &mockCaptioner{result: caption.Result{Text: captionText}},
		remote:    narrative.NewMockLLM(storyText),
		local:     narrative.NewMockLLM(storyText),
		speaker:   &fakeSpeaker{},
	}

	generator := narrative.NewGenerator(tp.remote, tp.local.Source(), narrative.GeneratorConfig{
		RemoteModel: "gpt-3.5-turbo",
		LocalModel:  "young-children-storyteller",
	})

	chunker, err := rag.NewChunker(60, 10)
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}
	factory := func(ctx context.Context, dimension int) (rag.VectorStore, error) {
		tp.opened++
		store, err := rag.NewMemoryStore(dimension)
		if err != nil {
			return nil, err
		}
		return &countingStore{MemoryStore: store, closed: &tp.closed}, nil
	}
	indexer, err := rag.NewIndexer(chunker, wordEmbedder{}, factory, rag.DefaultIndexOptions())
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	retriever, err := rag.NewRetriever(wordEmbedder{})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	coherence := evaluate.NewCoherence(fixedLoss{}, spaceLogProbs{}, evaluate.DefaultPerplexityWindow())

	p, err := New(Dependencies{
		Captioner: tp.captioner,
		Generator: generator,
		Indexer:   indexer,
		Retriever: retriever,
		Evaluator: evaluate.NewEvaluator(coherence),
		Speaker:   tp.speaker,
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tp.Pipeline = p
	return tp
}

type countingStore struct {
	*rag.MemoryStore
	closed *int
}

func (s *countingStore) Close() error {
	*s.closed++
	return s.MemoryStore.Close()
}

func TestNew_MissingDependencies(t *testing.T) {
	if _, err := New(Dependencies{}, DefaultConfig()); err == nil {
		t.Error("expected error for missing dependencies")
	}
}

func TestPipeline_UploadImage(t *testing.T) {
	tp := newTestPipeline(t, "a dog", "")

	out, err := tp.UploadImage(context.Background(), pngImage, "")
	if err != nil {
		t.Fatalf("UploadImage failed: %v", err)
	}
	if !strings.Contains(out.Caption, "dog") {
		t.Errorf("caption = %q, want it to mention a dog", out.Caption)
	}

	wantPrefix := "data:image/png;base64,"
	if !strings.HasPrefix(out.Image, wantPrefix) {
		t.Fatalf("image = %q, want prefix %q", out.Image, wantPrefix)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out.Image, wantPrefix))
	if err != nil || string(decoded) != string(pngImage) {
		t.Errorf("data URI does not round-trip the upload")
	}
}

func TestPipeline_UploadImageUsesGivenContentType(t *testing.T) {
	tp := newTestPipeline(t, "a dog", "")

	out, err := tp.UploadImage(context.Background(), pngImage, "image/jpeg")
	if err != nil {
		t.Fatalf("UploadImage failed: %v", err)
	}
	if !strings.HasPrefix(out.Image, "data:image/jpeg;base64,") {
		t.Errorf("image = %q", out.Image)
	}
}

func TestPipeline_UploadImageCaptionFailure(t *testing.T) {
	tp := newTestPipeline(t, "", "")
	tp.captioner.result = caption.Result{Err: apperr.Errorf(apperr.KindImageProcessing, "caption image", "model unavailable")}

	_, err := tp.UploadImage(context.Background(), pngImage, "")
	if !errors.Is(err, apperr.ErrImageProcessing) {
		t.Errorf("expected image processing error, got %v", err)
	}
}

func TestPipeline_UploadDocument(t *testing.T) {
	tp := newTestPipeline(t, "", "")
	pdf := extracttest.BuildPDF("The dog buried a bone in the garden behind the old red barn.")

	out, err := tp.UploadDocument(context.Background(), pdf)
	if err != nil {
		t.Fatalf("UploadDocument failed: %v", err)
	}
	if out.Message != "PDF processed successfully." || out.VectorStoreInfo != "Vector store built." {
		t.Errorf("unexpected response %+v", out)
	}
	if tp.opened != 1 || tp.closed != 1 {
		t.Errorf("opened %d, closed %d stores; want 1 and 1", tp.opened, tp.closed)
	}
}

func TestPipeline_UploadDocumentInvalidPDF(t *testing.T) {
	tp := newTestPipeline(t, "", "")

	_, err := tp.UploadDocument(context.Background(), []byte("not a pdf"))
	if !errors.Is(err, apperr.ErrExtraction) {
		t.Errorf("expected extraction error, got %v", err)
	}
	if tp.opened != 0 {
		t.Errorf("no store should be opened for an unreadable document")
	}
}

func TestPipeline_GenerateStory(t *testing.T) {
	tp := newTestPipeline(t, "", "  The little dog was very happy.  \n")

	out, err := tp.GenerateStory(context.Background(), "a dog in a park", narrative.ChoiceOpenAI)
	if err != nil {
		t.Fatalf("GenerateStory failed: %v", err)
	}
	if out.Story != "The little dog was very happy." {
		t.Errorf("story = %q", out.Story)
	}
	if out.Sentiment.Compound <= 0 {
		t.Errorf("expected positive sentiment, got %+v", out.Sentiment)
	}
	if out.Readability.FleschKincaidGrade >= 6 {
		t.Errorf("expected an easy read, got %+v", out.Readability)
	}
	if !strings.Contains(tp.remote.LastPrompt, "IMAGE DESCRIPTION: a dog in a park") {
		t.Errorf("scenario missing from prompt:\n%s", tp.remote.LastPrompt)
	}
	if tp.local.Calls != 0 {
		t.Error("local backend should not be called")
	}
}

func TestPipeline_GenerateStoryLocal(t *testing.T) {
	tp := newTestPipeline(t, "", "A short tale.")

	if _, err := tp.GenerateStory(context.Background(), "a cat", narrative.ChoiceLocal); err != nil {
		t.Fatalf("GenerateStory failed: %v", err)
	}
	if tp.local.Calls != 1 || tp.remote.Calls != 0 {
		t.Errorf("local calls %d, remote calls %d", tp.local.Calls, tp.remote.Calls)
	}
}

func TestPipeline_GenerateStoryErrors(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		choice   string
		wantErr  error
	}{
		{"unsupported model", "a dog", "Claude", apperr.ErrUnsupportedModel},
		{"empty scenario", "  ", narrative.ChoiceOpenAI, apperr.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestPipeline(t, "", "story")
			_, err := tp.GenerateStory(context.Background(), tt.scenario, tt.choice)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tp.remote.Calls != 0 {
				t.Error("model should not be called")
			}
		})
	}
}

func TestPipeline_GenerateStoryFromImage_EndToEnd(t *testing.T) {
	tp := newTestPipeline(t, "a dog", "Once upon a time a dog found a bone.\n")

	out, err := tp.GenerateStoryFromImage(context.Background(), ImageStoryRequest{
		Image:       pngImage,
		ModelChoice: narrative.ChoiceOpenAI,
	})
	if err != nil {
		t.Fatalf("GenerateStoryFromImage failed: %v", err)
	}

	if !strings.Contains(out.Caption, "dog") {
		t.Errorf("caption = %q", out.Caption)
	}
	if out.Story != "Once upon a time a dog found a bone." {
		t.Errorf("story = %q", out.Story)
	}
	if out.Coherence.BartScore <= 0 || out.Coherence.PerplexityScore < 1 {
		t.Errorf("unexpected coherence %+v", out.Coherence)
	}
	if out.Rouge != nil {
		t.Error("rouge needs a reference document")
	}
	if tp.opened != 0 {
		t.Error("no index should be built without a document")
	}
}

func TestPipeline_GenerateStoryFromImage_WithDocument(t *testing.T) {
	tp := newTestPipeline(t, "a dog with a bone", "The dog buried the bone in the garden.")
	pdf := extracttest.BuildPDF("The dog buried a bone in the garden behind the old red barn. Rain fell on the hills far away.")

	out, err := tp.GenerateStoryFromImage(context.Background(), ImageStoryRequest{
		Image:       pngImage,
		ModelChoice: narrative.ChoiceOpenAI,
		PDF:         pdf,
	})
	if err != nil {
		t.Fatalf("GenerateStoryFromImage failed: %v", err)
	}

	if out.Rouge == nil || out.Rouge.Rouge1 <= 0 {
		t.Errorf("expected rouge scores against the document, got %+v", out.Rouge)
	}
	if !strings.Contains(tp.remote.LastPrompt, "buried a bone") {
		t.Errorf("retrieved context missing from prompt:\n%s", tp.remote.LastPrompt)
	}
	if !strings.Contains(tp.remote.LastPrompt, "IMAGE DESCRIPTION: ") {
		t.Errorf("prompt template not applied:\n%s", tp.remote.LastPrompt)
	}
	if tp.opened != 1 || tp.closed != 1 {
		t.Errorf("opened %d, closed %d stores; want 1 and 1", tp.opened, tp.closed)
	}
}

func TestPipeline_GenerateStoryFromImage_Failures(t *testing.T) {
	t.Run("caption failure stops the pipeline", func(t *testing.T) {
		tp := newTestPipeline(t, "", "story")
		tp.captioner.result = caption.Result{Err: apperr.Errorf(apperr.KindImageProcessing, "caption image", "bad image")}

		_, err := tp.GenerateStoryFromImage(context.Background(), ImageStoryRequest{
			Image:       pngImage,
			ModelChoice: narrative.ChoiceOpenAI,
			PDF:         extracttest.BuildPDF("Some reference text about a dog."),
		})
		if !errors.Is(err, apperr.ErrImageProcessing) {
			t.Errorf("expected image processing error, got %v", err)
		}
		if tp.remote.Calls != 0 {
			t.Error("story should not be generated")
		}
		if tp.closed != tp.opened {
			t.Errorf("index leaked: opened %d, closed %d", tp.opened, tp.closed)
		}
	})

	t.Run("unsupported model is rejected before captioning", func(t *testing.T) {
		tp := newTestPipeline(t, "a dog", "story")

		_, err := tp.GenerateStoryFromImage(context.Background(), ImageStoryRequest{
			Image:       pngImage,
			ModelChoice: "GPT-9",
		})
		if !errors.Is(err, apperr.ErrUnsupportedModel) {
			t.Errorf("expected unsupported model error, got %v", err)
		}
		if tp.captioner.calls != 0 {
			t.Error("captioner should not be called")
		}
	})

	t.Run("generation failure", func(t *testing.T) {
		tp := newTestPipeline(t, "a dog", "")
		tp.remote.Error = errors.New("rate limited")

		_, err := tp.GenerateStoryFromImage(context.Background(), ImageStoryRequest{
			Image:       pngImage,
			ModelChoice: narrative.ChoiceOpenAI,
		})
		if !errors.Is(err, apperr.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}
	})
}

func TestPipeline_EvaluateStory(t *testing.T) {
	tp := newTestPipeline(t, "", "")

	scores, err := tp.EvaluateStory(context.Background(), "Once upon a time there was a dog")
	if err != nil {
		t.Fatalf("EvaluateStory failed: %v", err)
	}
	if scores.BartScore <= 0 || scores.BartScore > 1 {
		t.Errorf("bart_score = %f", scores.BartScore)
	}
	if scores.PerplexityScore < 1 {
		t.Errorf("perplexity_score = %f", scores.PerplexityScore)
	}

	if _, err := tp.EvaluateStory(context.Background(), ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestPipeline_TextToSpeech(t *testing.T) {
	tp := newTestPipeline(t, "", "")

	audio, err := tp.TextToSpeech(context.Background(), "Once upon a time")
	if err != nil {
		t.Fatalf("TextToSpeech failed: %v", err)
	}
	if string(audio.Data) != "fLaC" || audio.ContentType != "audio/flac" {
		t.Errorf("unexpected audio %+v", audio)
	}
	if tp.speaker.text != "Once upon a time" {
		t.Errorf("speaker got %q", tp.speaker.text)
	}

	tp.speaker.err = apperr.Errorf(apperr.KindUpstream, "synthesize speech", "status 503")
	if _, err := tp.TextToSpeech(context.Background(), "again"); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestPipeline_TextToSpeechUnconfigured(t *testing.T) {
	tp := newTestPipeline(t, "", "")
	tp.Pipeline.speaker = nil

	if _, err := tp.TextToSpeech(context.Background(), "Once upon a time"); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
