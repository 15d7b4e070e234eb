package domain

import "taxirn/internal/model"

// Notification — всплывающее уведомление пользователю
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Caption string `json:"caption,omitempty"`
}

func Positive(msg string) Notification { return Notification{Type: model.NotifyPositive, Message: msg} }
func Negative(msg string) Notification { return Notification{Type: model.NotifyNegative, Message: msg} }
func Warning(msg string) Notification  { return Notification{Type: model.NotifyWarning, Message: msg} }
func Info(msg string) Notification     { return Notification{Type: model.NotifyInfo, Message: msg} }

// Тексты уведомлений
const (
	MsgLocationAlreadySaved = "This location is already saved."
	MsgLocationSaved        = "Location saved successfully."
	MsgLocationSaveFailed   = "Failed to save location."
	MsgLocationDeleted      = "Location deleted."
	MsgLocationDeleteFailed = "Failed to delete location."
	MsgLocationNotSaved     = "Cannot delete an unsaved location."
	MsgLocationLoadFailed   = "Failed to load saved locations."
	MsgNoStartPoint         = "Set a start point first."
	MsgNameRequired         = "Name is required."
	MsgPermissionDenied     = "Location permission denied!"
	MsgLocationUnavailable  = "Could not get your current location."
	MsgLocationFound        = "Current location found."

	MsgRouteAlreadySaved = "This route is already saved."
	MsgRouteSaved        = "Route saved successfully."
	MsgRouteSaveFailed   = "Failed to save route."
	MsgRouteDeleted      = "Route deleted."
	MsgRouteDeleteFailed = "Failed to delete route."
	MsgRouteNotSaved     = "Cannot delete an unsaved route."
	MsgRouteLoadFailed   = "Failed to load saved routes."
	MsgRouteNotFound     = "No route found between the selected points."
	MsgRoutingFailed     = "Failed to calculate route."
	MsgMissingEndpoints  = "Set both start and end points first."

	MsgSearchFailed = "Place search failed."
)
