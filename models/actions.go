// ABOUTME: Closed action vocabulary with base points and category membership
// ABOUTME: Defines ActionID, Channel, CustomizationLevel and the ActionEvent record
package models

import (
	"sort"
	"time"
)

// Channel is the medium an action used.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelCall  Channel = "call"
	ChannelVideo Channel = "video"
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Valid reports whether c is a known channel. The empty channel is valid (absent).
func (c Channel) Valid() bool {
	switch c {
	case "", ChannelSMS, ChannelCall, ChannelVideo, ChannelEmail, ChannelChat:
		return true
	}
	return false
}

// TouchAction is the outreach action recorded for a touch on c, or "" when
// the channel is absent.
func (c Channel) TouchAction() ActionID {
	switch c {
	case ChannelSMS:
		return ActionSMSSent
	case ChannelCall:
		return ActionCallMade
	case ChannelVideo:
		return ActionVideoCallMade
	case ChannelEmail:
		return ActionEmailSent
	case ChannelChat:
		return ActionChatSent
	}
	return ""
}

// CustomizationLevel describes how much a suggested draft was edited before sending.
type CustomizationLevel string

const (
	CustomizationUntouched CustomizationLevel = "untouched"
	CustomizationLight     CustomizationLevel = "light"
	CustomizationHeavy     CustomizationLevel = "heavy"
	CustomizationCustom    CustomizationLevel = "custom"
)

// Valid reports whether l is a known level. The empty level is valid (absent).
func (l CustomizationLevel) Valid() bool {
	switch l {
	case "", CustomizationUntouched, CustomizationLight, CustomizationHeavy, CustomizationCustom:
		return true
	}
	return false
}

// Category groups action ids (A-L).
type Category string

const (
	CategoryIntent      Category = "A_intent"
	CategoryInteraction Category = "B_interaction"
	CategoryReciprocity Category = "C_reciprocity"
	CategoryContext     Category = "D_context"
	CategoryCadence     Category = "E_cadence"
	CategoryFreshness   Category = "F_freshness"
	CategoryCalendar    Category = "G_calendar"
	CategoryEmail       Category = "H_email"
	CategorySlack       Category = "I_slack"
	CategoryHygiene     Category = "J_hygiene"
	CategoryDeferral    Category = "K_deferral"
	CategoryPassive     Category = "L_passive"
)

// IsPremium reports whether actions in the category require a premium entitlement.
func (c Category) IsPremium() bool {
	return c == CategoryCalendar || c == CategoryEmail || c == CategorySlack
}

// Bucket is a score breakdown bucket.
type Bucket string

const (
	BucketNone        Bucket = ""
	BucketIntent      Bucket = "intent"
	BucketInteraction Bucket = "interaction"
	BucketReciprocity Bucket = "reciprocity"
	BucketContext     Bucket = "context"
	BucketCadence     Bucket = "cadence"
	BucketFreshness   Bucket = "freshness"
)

// ActionID identifies one entry of the action vocabulary.
type ActionID string

// A: intent
const (
	ActionCardOpened     ActionID = "card_opened"
	ActionDraftRequested ActionID = "draft_requested"
	ActionDraftEdited    ActionID = "draft_edited"
	ActionReminderSet    ActionID = "reminder_set"
	ActionNoteAdded      ActionID = "note_added"
	ActionProfileViewed  ActionID = "profile_viewed"
)

// B: interaction
const (
	ActionSMSSent          ActionID = "sms_sent"
	ActionEmailSent        ActionID = "email_sent"
	ActionCallMade         ActionID = "call_made"
	ActionVideoCallMade    ActionID = "video_call_made"
	ActionChatSent         ActionID = "chat_sent"
	ActionVoiceNoteSent    ActionID = "voice_note_sent"
	ActionInPersonMeeting  ActionID = "in_person_meeting"
	ActionGroupMessageSent ActionID = "group_message_sent"
)

// C: reciprocity
const (
	ActionReplyReceived      ActionID = "reply_received"
	ActionCallReceived       ActionID = "call_received"
	ActionInboundMessage     ActionID = "inbound_message"
	ActionConversationThread ActionID = "conversation_thread"
	ActionPlanConfirmed      ActionID = "plan_confirmed"
)

// D: context
const (
	ActionBirthdayAcknowledged  ActionID = "birthday_acknowledged"
	ActionLifeEventAcknowledged ActionID = "life_event_acknowledged"
	ActionIntroMade             ActionID = "intro_made"
	ActionSharedLink            ActionID = "shared_link"
	ActionGiftSent              ActionID = "gift_sent"
)

// E: cadence
const (
	ActionCadenceSet    ActionID = "cadence_set"
	ActionCadenceMet    ActionID = "cadence_met"
	ActionMissedCadence ActionID = "missed_cadence"
	ActionStreakKept    ActionID = "streak_kept"
)

// F: freshness
const (
	ActionFreshFirstTouch   ActionID = "fresh_first_touch"
	ActionFastFirstTouch    ActionID = "fast_first_touch"
	ActionFreshContactAdded ActionID = "fresh_contact_added"
)

// G: calendar (premium)
const (
	ActionCalendarMeetingScheduled ActionID = "calendar_meeting_scheduled"
	ActionCalendarMeetingAttended  ActionID = "calendar_meeting_attended"
	ActionCalendarMeetingCancelled ActionID = "calendar_meeting_cancelled"
	ActionCalendarRecurringMeeting ActionID = "calendar_recurring_meeting"
)

// H: email signals (premium)
const (
	ActionEmailThreadActive      ActionID = "email_thread_active"
	ActionEmailReplyReceived     ActionID = "email_reply_received"
	ActionEmailUnanswered        ActionID = "email_unanswered"
	ActionEmailNewsletterIgnored ActionID = "email_newsletter_ignored"
)

// I: slack signals (premium)
const (
	ActionSlackDMSent      ActionID = "slack_dm_sent"
	ActionSlackDMReceived  ActionID = "slack_dm_received"
	ActionSlackThreadReply ActionID = "slack_thread_reply"
	ActionSlackMention     ActionID = "slack_mention"
)

// J: profile hygiene
const (
	ActionPhoneAdded      ActionID = "phone_added"
	ActionEmailAdded      ActionID = "email_added"
	ActionPhotoAdded      ActionID = "photo_added"
	ActionDuplicateMerged ActionID = "duplicate_merged"
	ActionTagAdded        ActionID = "tag_added"
	ActionContactArchived ActionID = "contact_archived"
)

// K: deferral and negative signals
const (
	ActionCardSkipped         ActionID = "card_skipped"
	ActionCardSnoozed         ActionID = "card_snoozed"
	ActionDeferred            ActionID = "deferred"
	ActionCardDismissed       ActionID = "card_dismissed"
	ActionDeferRepeats        ActionID = "defer_repeats"
	ActionMultiChannelNoReply ActionID = "multi_channel_no_reply"
)

// L: passive
const (
	ActionCardImpression      ActionID = "card_impression"
	ActionNotificationIgnored ActionID = "notification_ignored"
	ActionImpressionsNoAction ActionID = "impressions_no_action"
)

// ActionDef is one row of the point table.
type ActionDef struct {
	ID         ActionID
	Category   Category
	Bucket     Bucket
	BasePoints float64
	Meaningful bool // counts as real engagement with the contact
	Reply      bool // the contact reached back
	Defer      bool // the user postponed outreach
	Impression bool // the card was shown without interaction
	System     bool // derived by the pipeline, never user-triggered
}

var actionTable = map[ActionID]ActionDef{
	ActionCardOpened:     {Category: CategoryIntent, Bucket: BucketIntent, BasePoints: 2},
	ActionDraftRequested: {Category: CategoryIntent, Bucket: BucketIntent, BasePoints: 3},
	ActionDraftEdited:    {Category: CategoryIntent, Bucket: BucketIntent, BasePoints: 3},
	ActionReminderSet:    {Category: CategoryIntent, Bucket: BucketIntent, BasePoints: 2},
	ActionNoteAdded:      {Category: CategoryIntent, Bucket: BucketIntent, BasePoints: 2},
	ActionProfileViewed:  {Category: CategoryIntent, Bucket: BucketIntent, BasePoints: 1},

	ActionSMSSent:          {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 8, Meaningful: true},
	ActionEmailSent:        {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 8, Meaningful: true},
	ActionCallMade:         {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 12, Meaningful: true},
	ActionVideoCallMade:    {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 14, Meaningful: true},
	ActionChatSent:         {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 6, Meaningful: true},
	ActionVoiceNoteSent:    {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 9, Meaningful: true},
	ActionInPersonMeeting:  {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 20, Meaningful: true},
	ActionGroupMessageSent: {Category: CategoryInteraction, Bucket: BucketInteraction, BasePoints: 6, Meaningful: true},

	ActionReplyReceived:      {Category: CategoryReciprocity, Bucket: BucketReciprocity, BasePoints: 10, Meaningful: true, Reply: true},
	ActionCallReceived:       {Category: CategoryReciprocity, Bucket: BucketReciprocity, BasePoints: 12, Meaningful: true, Reply: true},
	ActionInboundMessage:     {Category: CategoryReciprocity, Bucket: BucketReciprocity, BasePoints: 8, Meaningful: true, Reply: true},
	ActionConversationThread: {Category: CategoryReciprocity, Bucket: BucketReciprocity, BasePoints: 6, Meaningful: true, Reply: true},
	ActionPlanConfirmed:      {Category: CategoryReciprocity, Bucket: BucketReciprocity, BasePoints: 12, Meaningful: true, Reply: true},

	ActionBirthdayAcknowledged:  {Category: CategoryContext, Bucket: BucketContext, BasePoints: 6, Meaningful: true},
	ActionLifeEventAcknowledged: {Category: CategoryContext, Bucket: BucketContext, BasePoints: 8, Meaningful: true},
	ActionIntroMade:             {Category: CategoryContext, Bucket: BucketContext, BasePoints: 10, Meaningful: true},
	ActionSharedLink:            {Category: CategoryContext, Bucket: BucketContext, BasePoints: 4, Meaningful: true},
	ActionGiftSent:              {Category: CategoryContext, Bucket: BucketContext, BasePoints: 10, Meaningful: true},

	ActionCadenceSet:    {Category: CategoryCadence, Bucket: BucketCadence, BasePoints: 3},
	ActionCadenceMet:    {Category: CategoryCadence, Bucket: BucketCadence, BasePoints: 8},
	ActionMissedCadence: {Category: CategoryCadence, Bucket: BucketCadence, BasePoints: -10, System: true},
	ActionStreakKept:    {Category: CategoryCadence, Bucket: BucketCadence, BasePoints: 5},

	ActionFreshFirstTouch:   {Category: CategoryFreshness, Bucket: BucketFreshness, BasePoints: 15, System: true},
	ActionFastFirstTouch:    {Category: CategoryFreshness, Bucket: BucketFreshness, BasePoints: 10, System: true},
	ActionFreshContactAdded: {Category: CategoryFreshness, Bucket: BucketFreshness, BasePoints: 2},

	ActionCalendarMeetingScheduled: {Category: CategoryCalendar, Bucket: BucketContext, BasePoints: 10, Meaningful: true},
	ActionCalendarMeetingAttended:  {Category: CategoryCalendar, Bucket: BucketInteraction, BasePoints: 15, Meaningful: true},
	ActionCalendarMeetingCancelled: {Category: CategoryCalendar, Bucket: BucketContext, BasePoints: -5},
	ActionCalendarRecurringMeeting: {Category: CategoryCalendar, Bucket: BucketCadence, BasePoints: 6, Meaningful: true},

	ActionEmailThreadActive:      {Category: CategoryEmail, Bucket: BucketInteraction, BasePoints: 8, Meaningful: true},
	ActionEmailReplyReceived:     {Category: CategoryEmail, Bucket: BucketReciprocity, BasePoints: 10, Meaningful: true, Reply: true},
	ActionEmailUnanswered:        {Category: CategoryEmail, Bucket: BucketReciprocity, BasePoints: -4},
	ActionEmailNewsletterIgnored: {Category: CategoryEmail, Bucket: BucketNone, BasePoints: -1},

	ActionSlackDMSent:      {Category: CategorySlack, Bucket: BucketInteraction, BasePoints: 5, Meaningful: true},
	ActionSlackDMReceived:  {Category: CategorySlack, Bucket: BucketReciprocity, BasePoints: 7, Meaningful: true, Reply: true},
	ActionSlackThreadReply: {Category: CategorySlack, Bucket: BucketInteraction, BasePoints: 4, Meaningful: true},
	ActionSlackMention:     {Category: CategorySlack, Bucket: BucketContext, BasePoints: 3},

	ActionPhoneAdded:      {Category: CategoryHygiene, BasePoints: 1},
	ActionEmailAdded:      {Category: CategoryHygiene, BasePoints: 1},
	ActionPhotoAdded:      {Category: CategoryHygiene, BasePoints: 1},
	ActionDuplicateMerged: {Category: CategoryHygiene, BasePoints: 1},
	ActionTagAdded:        {Category: CategoryHygiene, BasePoints: 1},
	ActionContactArchived: {Category: CategoryHygiene, BasePoints: -5},

	ActionCardSkipped:         {Category: CategoryDeferral, BasePoints: -2, Defer: true},
	ActionCardSnoozed:         {Category: CategoryDeferral, BasePoints: -1, Defer: true},
	ActionDeferred:            {Category: CategoryDeferral, BasePoints: -3, Defer: true},
	ActionCardDismissed:       {Category: CategoryDeferral, BasePoints: -3},
	ActionDeferRepeats:        {Category: CategoryDeferral, BasePoints: -8, System: true},
	ActionMultiChannelNoReply: {Category: CategoryDeferral, BasePoints: -6, System: true},

	ActionCardImpression:      {Category: CategoryPassive, BasePoints: 0, Impression: true},
	ActionNotificationIgnored: {Category: CategoryPassive, BasePoints: -1},
	ActionImpressionsNoAction: {Category: CategoryPassive, BasePoints: -4, System: true},
}

func init() {
	for id, def := range actionTable {
		def.ID = id
		actionTable[id] = def
	}
}

// LookupAction returns the table row for id.
func LookupAction(id ActionID) (ActionDef, bool) {
	def, ok := actionTable[id]
	return def, ok
}

// AllActions returns every action definition sorted by id.
func AllActions() []ActionDef {
	defs := make([]ActionDef, 0, len(actionTable))
	for _, def := range actionTable {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// ActionEvent is one scored entry of the action log.
type ActionEvent struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	ContactID       string             `json:"contact_id"`
	ActionID        ActionID           `json:"action_id"`
	Category        Category           `json:"category"`
	BasePoints      float64            `json:"base_points"`
	Multipliers     map[string]float64 `json:"multipliers,omitempty"`
	TotalMultiplier float64            `json:"total_multiplier"`
	FreshnessBonus  float64            `json:"freshness_bonus"`
	FinalPoints     float64            `json:"final_points"`
	Channel         Channel            `json:"channel,omitempty"`
	Customization   CustomizationLevel `json:"customization,omitempty"`
	IsMultiContact  bool               `json:"is_multi_contact"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
	DedupeKey       string             `json:"dedupe_key,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Def returns the vocabulary row for the event's action.
func (e *ActionEvent) Def() ActionDef {
	def, _ := LookupAction(e.ActionID)
	return def
}
