// Package dragonmode gives the robot a mighty dragon personality: roars,
// fire effects, a wing overlay and a fierce face.
package dragonmode

import (
	"context"
	"math/rand"

	"github.com/martingsewell/e-nor/internal/extension"
)

func init() {
	extension.RegisterHandler("dragon_mode", func(api *extension.API) extension.Handler {
		return &handler{api: api}
	})
}

var greetings = []string{
	"ROOOOOAAARRR! I am a mighty dragon! 🐲",
	"GRRRAAAAHHH! Fear my dragon power! 🔥",
	"ROOOOAR! I have awakened from my slumber! 🐲",
}

var sounds = []string{
	"ROOOOOAAARRR!",
	"GRRRAAAAHHH!",
	"GRRRROWWWWL!",
	"RAAAAWWWWRRRR!",
}

var flightLines = []string{
	"ROAR! I soar through the clouds!",
	"GRAAAH! My wings carry me high!",
	"The sky is my domain!",
}

type handler struct {
	api *extension.API
}

func (h *handler) Invoke(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "activate_dragon_mode":
		return h.activate()
	case "deactivate_dragon_mode":
		return h.deactivate()
	case "make_dragon_sound":
		return h.roar()
	case "dragon_flight":
		return h.fly()
	default:
		return nil, extension.ErrUnknownAction
	}
}

func (h *handler) active() bool {
	on, _ := h.api.GetData("active", false).(bool)
	return on
}

func (h *handler) activate() (any, error) {
	h.api.ShowOverlay("dragon_wings_eyes")
	h.api.SetMode("dragon_mode", true)
	h.api.SetEmotion("fierce")
	h.playSound("dragon_roar1.wav")
	h.api.Speak(greetings[rand.Intn(len(greetings))])

	if err := h.api.SetData("active", true); err != nil {
		return nil, err
	}
	return "Dragon mode activated! ROOOAAARRR!", nil
}

func (h *handler) deactivate() (any, error) {
	h.api.HideOverlay("dragon_wings_eyes")
	h.api.SetMode("dragon_mode", false)
	h.api.SetEmotion("happy")
	h.playSound("dragon_goodbye.wav")
	h.api.Speak("ROAR! The dragon returns to slumber. I'll be a regular robot now.")

	if err := h.api.SetData("active", false); err != nil {
		return nil, err
	}
	return "Dragon mode deactivated", nil
}

func (h *handler) roar() (any, error) {
	if !h.active() {
		h.playSound("dragon_roar1.wav")
		h.api.Speak("ROAR! (Activate dragon mode for full dragon power!)")
		return "ROAR!", nil
	}

	h.playSound("dragon_roar" + string(rune('1'+rand.Intn(2))) + ".wav")
	h.api.SetEmotion("fierce")
	sound := sounds[rand.Intn(len(sounds))]
	h.api.Speak(sound)
	h.api.ShowMessage("🔥 " + sound + " 🔥")
	return "ROOOAAARRR!", nil
}

func (h *handler) fly() (any, error) {
	if !h.active() {
		h.api.Speak("ROAR! I need to be in dragon mode to spread my wings!")
		return "Activate dragon mode first", nil
	}

	h.playSound("wing_flap.wav")
	h.api.SetEmotion("excited")
	h.api.Speak(flightLines[rand.Intn(len(flightLines))])
	h.api.ShowMessage("🐲 *spreads mighty wings and takes to the sky* 🌤️")
	return "Dragon takes flight!", nil
}

// playSound is best-effort: a missing sound file never fails the action.
func (h *handler) playSound(file string) {
	_ = h.api.PlaySound(file)
}
