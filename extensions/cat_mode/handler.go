// Package catmode turns the robot into a cat: purring, meows and ear overlay.
package catmode

import (
	"context"
	"math/rand"
	"time"

	"github.com/martingsewell/e-nor/internal/extension"
)

func init() {
	extension.RegisterHandler("cat_mode", func(api *extension.API) extension.Handler {
		return &handler{api: api}
	})
}

var meows = []string{
	"Meooow! 🐱",
	"Purrrr... meow!",
	"Mrrrow?",
	"Meow meow!",
}

type handler struct {
	api *extension.API
}

func (h *handler) Invoke(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "activate_cat_mode":
		return h.activate()
	case "deactivate_cat_mode":
		return h.deactivate()
	case "make_cat_sound":
		return h.meow()
	case "purr":
		return h.purr(ctx)
	default:
		return nil, extension.ErrUnknownAction
	}
}

func (h *handler) active() bool {
	on, _ := h.api.GetData("active", false).(bool)
	return on
}

func (h *handler) activate() (any, error) {
	h.api.ShowOverlay("cat_ears_whiskers")
	h.api.SetMode("cat_mode", true)
	h.api.SetEmotion("playful")
	_ = h.api.PlaySound("meow1.wav")
	h.api.Speak("Meow! I'm a cat now! 🐱")

	if err := h.api.SetData("active", true); err != nil {
		return nil, err
	}
	return "Cat mode activated! Meow!", nil
}

func (h *handler) deactivate() (any, error) {
	h.api.HideOverlay("cat_ears_whiskers")
	h.api.SetMode("cat_mode", false)
	h.api.SetEmotion("happy")
	h.api.Speak("Meow! Back to being a regular robot.")

	if err := h.api.SetData("active", false); err != nil {
		return nil, err
	}
	return "Cat mode deactivated", nil
}

func (h *handler) meow() (any, error) {
	line := meows[rand.Intn(len(meows))]
	_ = h.api.PlaySound("meow1.wav")
	h.api.Speak(line)
	if h.active() {
		h.api.ShowMessage("🐱 " + line)
	}
	return line, nil
}

// purr runs a short repeated purring loop. It polls the emergency-stop flag
// between steps so the loop can be interrupted.
func (h *handler) purr(ctx context.Context) (any, error) {
	h.api.ClearStopFlag()
	h.api.SetEmotion("content")

	for i := 0; i < 5; i++ {
		if h.api.IsStopped() || ctx.Err() != nil {
			break
		}
		h.api.ShowMessage("purrrrr...")
		time.Sleep(500 * time.Millisecond)
	}

	return "Purrrr...", nil
}
