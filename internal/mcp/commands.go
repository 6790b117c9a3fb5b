package mcp

import (
	"context"
	"encoding/json"
	"strings"
)

// Controller tool names. The snapshot tool returns the full live-context
// text block; the Hass* tools mirror the controller's intent surface.
const (
	toolLiveContext = "GetLiveContext"

	toolTurnOn         = "HassTurnOn"
	toolTurnOff        = "HassTurnOff"
	toolLightSet       = "HassLightSet"
	toolSetTemperature = "HassClimateSetTemperature"
	toolSetVolume      = "HassSetVolume"
	toolMediaPause     = "HassMediaPause"
	toolMediaUnpause   = "HassMediaUnpause"
	toolMediaNext      = "HassMediaNext"
	toolMediaPrevious  = "HassMediaPrevious"
)

// toolResult is the content envelope a tool call returns.
type toolResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// outcomeFromToolResult folds a raw tools/call result into a CommandOutcome.
// The first text content item becomes the message in either direction.
func outcomeFromToolResult(raw json.RawMessage) CommandOutcome {
	var res toolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		// An undecodable result from an accepted call still counts as
		// dispatched; the controller does not echo structured outcomes
		// for every tool.
		return CommandOutcome{Success: true}
	}

	msg := ""
	for _, item := range res.Content {
		if item.Type == "text" && strings.TrimSpace(item.Text) != "" {
			msg = strings.TrimSpace(item.Text)
			break
		}
	}

	return CommandOutcome{Success: !res.IsError, Message: msg}
}

// TurnOn powers on the named device.
func (c *Client) TurnOn(ctx context.Context, name string) CommandOutcome {
	return c.callTool(ctx, toolTurnOn, map[string]any{"name": name})
}

// TurnOff powers off the named device.
func (c *Client) TurnOff(ctx context.Context, name string) CommandOutcome {
	return c.callTool(ctx, toolTurnOff, map[string]any{"name": name})
}

// SetBrightness sets a light's brightness as a 0-100 percentage.
func (c *Client) SetBrightness(ctx context.Context, name string, percent int) CommandOutcome {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return c.callTool(ctx, toolLightSet, map[string]any{
		"name":       name,
		"brightness": percent,
	})
}

// SetTemperature sets a climate device's target temperature.
func (c *Client) SetTemperature(ctx context.Context, name string, degrees float64) CommandOutcome {
	return c.callTool(ctx, toolSetTemperature, map[string]any{
		"name":        name,
		"temperature": degrees,
	})
}

// SetFanSpeed sets a fan's speed as a 0-100 percentage. Fans share the
// generic turn-on tool; the controller maps the percentage to the device.
func (c *Client) SetFanSpeed(ctx context.Context, name string, percent int) CommandOutcome {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return c.callTool(ctx, toolTurnOn, map[string]any{
		"name":       name,
		"percentage": percent,
	})
}

// SetVolume sets a media player's volume as a 0-100 percentage.
func (c *Client) SetVolume(ctx context.Context, name string, percent int) CommandOutcome {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return c.callTool(ctx, toolSetVolume, map[string]any{
		"name":         name,
		"volume_level": percent,
	})
}

// MediaPause pauses playback on the named media player.
func (c *Client) MediaPause(ctx context.Context, name string) CommandOutcome {
	return c.callTool(ctx, toolMediaPause, map[string]any{"name": name})
}

// MediaPlay resumes playback on the named media player.
func (c *Client) MediaPlay(ctx context.Context, name string) CommandOutcome {
	return c.callTool(ctx, toolMediaUnpause, map[string]any{"name": name})
}

// MediaNext skips to the next track on the named media player.
func (c *Client) MediaNext(ctx context.Context, name string) CommandOutcome {
	return c.callTool(ctx, toolMediaNext, map[string]any{"name": name})
}

// MediaPrevious returns to the previous track on the named media player.
func (c *Client) MediaPrevious(ctx context.Context, name string) CommandOutcome {
	return c.callTool(ctx, toolMediaPrevious, map[string]any{"name": name})
}
