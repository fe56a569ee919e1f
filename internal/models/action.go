package models

import (
	"fmt"
	"strings"
)

// ActionType is a user interaction kind that feeds the signal profile
type ActionType string

const (
	ActionFavorite ActionType = "favorite"
	ActionReblog   ActionType = "reblog"
	ActionBookmark ActionType = "bookmark"
	ActionReply    ActionType = "reply"
)

// ParseActionType accepts both spellings Mastodon clients send for favourites
func ParseActionType(s string) (ActionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "favorite", "favourite", "fav":
		return ActionFavorite, nil
	case "reblog", "boost":
		return ActionReblog, nil
	case "bookmark":
		return ActionBookmark, nil
	case "reply":
		return ActionReply, nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// PrivacyLevel is the tracking level a user has chosen
type PrivacyLevel string

const (
	PrivacyFull    PrivacyLevel = "full"
	PrivacyLimited PrivacyLevel = "limited"
	PrivacyNone    PrivacyLevel = "none"
)

// ParsePrivacyLevel validates a privacy level string
func ParsePrivacyLevel(s string) (PrivacyLevel, error) {
	switch PrivacyLevel(strings.ToLower(strings.TrimSpace(s))) {
	case PrivacyFull:
		return PrivacyFull, nil
	case PrivacyLimited:
		return PrivacyLimited, nil
	case PrivacyNone:
		return PrivacyNone, nil
	}
	return "", fmt.Errorf("unknown privacy level %q", s)
}
