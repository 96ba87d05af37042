package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kangban/companion/adapters/stt"
	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
	"github.com/kangban/companion/internal/audio"
	"github.com/kangban/companion/internal/intent"
	"github.com/kangban/companion/internal/observability"
)

// ErrNotConfigured halts the pipeline before any network call when the
// recognition credential triple is incomplete.
var ErrNotConfigured = errors.New("recognition credentials not configured")

// NoSpeechReply is shown when recognition yields nothing, for whatever
// reason: silence, transport failure, or rejected credentials all degrade
// to the same user-facing outcome.
const NoSpeechReply = "没听清，请再说一次"

// Outcome is the result of one elder utterance through the full pipeline.
type Outcome struct {
	Transcript string
	ReplyText  string
	Kind       entities.DirectiveKind
	Contact    string
	CallNumber string
	TelLink    string
	Alert      string
	Audio      []byte
	AudioMIME  string
}

// PipelineService orchestrates one voice interaction: normalize,
// recognize, generate a reply, dispatch the directive, synthesize speech,
// and record the exchange. One foreground flow per user interaction.
type PipelineService struct {
	settings     repositories.SettingsStore
	replies      *ReplyService
	tts          repositories.TextToSpeech
	interactions repositories.InteractionRepository
	logger       *zap.Logger

	// newRecognizer is swappable in tests; the default builds the iFlytek
	// client from the current credential triple.
	newRecognizer func(creds entities.Credentials) repositories.SpeechToText
}

// NewPipelineService creates the pipeline. tts may be nil, in which case
// every reply is text-only.
func NewPipelineService(
	settings repositories.SettingsStore,
	replies *ReplyService,
	tts repositories.TextToSpeech,
	interactions repositories.InteractionRepository,
	logger *zap.Logger,
) *PipelineService {
	s := &PipelineService{
		settings:     settings,
		replies:      replies,
		tts:          tts,
		interactions: interactions,
		logger:       logger,
	}
	s.newRecognizer = func(creds entities.Credentials) repositories.SpeechToText {
		return stt.NewRecognizer(creds, logger)
	}
	return s
}

// ProcessVoice runs one uploaded audio blob through the pipeline.
//
// It returns an error only for the two user-visible halts defined before
// any vendor call: a malformed upload (*audio.FormatError) or missing
// credentials (ErrNotConfigured). Every vendor failure past that point
// degrades into the Outcome instead.
func (s *PipelineService) ProcessVoice(ctx context.Context, upload []byte, contentType string) (*Outcome, error) {
	start := time.Now()

	pcm, err := audio.ExtractPCM(upload, contentType)
	if err != nil {
		observability.RecordPipeline("format_rejected", start)
		return nil, err
	}

	settings := s.settings.Snapshot()
	creds := settings.ASRCredentials()
	if !creds.Complete() {
		observability.RecordPipeline("unconfigured", start)
		return nil, ErrNotConfigured
	}

	transcript := s.recognize(ctx, creds, pcm)
	if transcript == "" {
		observability.RecordPipeline("no_speech", start)
		return &Outcome{ReplyText: NoSpeechReply, Kind: entities.DirectivePlain}, nil
	}

	reply := s.replies.Generate(ctx, transcript, settings)
	directive := intent.Dispatch(reply, settings.Contacts)
	observability.RecordDirective(string(directive.Kind))

	outcome := &Outcome{
		Transcript: transcript,
		ReplyText:  directive.Display,
		Kind:       directive.Kind,
		Contact:    directive.ContactName,
		CallNumber: directive.Number,
		TelLink:    directive.TelLink(),
	}
	if directive.Kind == entities.DirectiveAlert {
		outcome.Alert = directive.Display
	}

	s.synthesize(ctx, outcome)
	s.record(ctx, outcome)

	observability.RecordPipeline("success", start)
	return outcome, nil
}

// recognize runs one recognition session, collapsing every failure into
// the empty transcript. The distinct causes stay visible in logs and
// metrics.
func (s *PipelineService) recognize(ctx context.Context, creds entities.Credentials, pcm []byte) string {
	recognizer := s.newRecognizer(creds)

	start := time.Now()
	transcript, err := recognizer.Transcribe(ctx, pcm)
	switch {
	case errors.Is(err, repositories.ErrAuthRejected):
		observability.RecordRecognition("auth_rejected", start)
		s.logger.Error("Recognition credentials rejected", zap.Error(err))
		return ""
	case err != nil:
		observability.RecordRecognition("transport_error", start)
		s.logger.Error("Recognition transport failed", zap.Error(err))
		return ""
	case transcript == "":
		observability.RecordRecognition("no_speech", start)
		return ""
	}

	observability.RecordRecognition("success", start)
	s.logger.Info("Transcription completed", zap.String("text", transcript))
	return transcript
}

// synthesize attaches spoken audio to the outcome. Failure degrades to a
// text-only reply.
func (s *PipelineService) synthesize(ctx context.Context, outcome *Outcome) {
	if s.tts == nil {
		return
	}

	start := time.Now()
	payload, err := s.tts.Synthesize(ctx, outcome.ReplyText)
	if err != nil {
		observability.RecordSynthesis("error", start)
		s.logger.Warn("Speech synthesis failed, replying text-only", zap.Error(err))
		return
	}

	observability.RecordSynthesis("success", start)
	outcome.Audio = payload
	outcome.AudioMIME = s.tts.MIMEType()
}

// record appends the exchange to the caregiver audit log, best-effort.
func (s *PipelineService) record(ctx context.Context, outcome *Outcome) {
	if s.interactions == nil {
		return
	}

	interaction := &entities.Interaction{
		Timestamp:  time.Now(),
		Transcript: outcome.Transcript,
		Reply:      outcome.ReplyText,
		Kind:       outcome.Kind,
		Contact:    outcome.Contact,
		Number:     outcome.CallNumber,
		Alert:      outcome.Alert,
	}
	if err := s.interactions.Create(ctx, interaction); err != nil {
		s.logger.Warn("Failed to record interaction", zap.Error(err))
	}
}
