// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexical

import "strings"

// =============================================================================
// Phrase Sets
// =============================================================================

// PhraseSet is a list of Hebrew/English phrases matched against user
// text. Single-word phrases match whole tokens (so "no" never matches
// inside "now"); multi-word phrases match as contiguous token runs.
// Hebrew tokens tolerate the common attached prefixes (ה, ב, ל, ו...).
//
// Thread Safety: Read-only after package init, safe for concurrent use.
type PhraseSet []string

// MatchesAny reports whether any phrase in the set occurs in the text.
func (ps PhraseSet) MatchesAny(text string) bool {
	tokens := Tokenize(Fold(text))
	return len(keywordPositions(tokens, ps)) > 0
}

// =============================================================================
// Conversational Markers
// =============================================================================

// Greetings are opening salutations, independent of everything else in
// the turn.
var Greetings = PhraseSet{
	"שלום", "היי", "הי", "אהלן",
	"בוקר טוב", "ערב טוב", "צהריים טובים",
	"hello", "hi", "hey", "good morning", "good evening",
}

// PolitenessMarkers are a hard override on commanding-tone detection:
// their presence anywhere in the utterance suppresses it entirely.
var PolitenessMarkers = PhraseSet{
	"בבקשה", "תודה", "אשמח", "סליחה", "אם אפשר", "ברשותך",
	"please", "thanks", "thank you", "kindly", "excuse me",
}

// CommandingOpeners mark an imperative, demanding register when no
// politeness marker is present.
var CommandingOpeners = PhraseSet{
	"תן לי", "תני לי", "תביא לי", "תביא", "מהר", "עכשיו", "כבר",
	"give me", "hurry", "right now", "just give",
}

// =============================================================================
// Policy Signals
// =============================================================================

var RudePhrases = PhraseSet{
	"טמבל", "אידיוט", "מטומטם", "דביל", "מפגר", "סתום", "שתוק",
	"חמור", "טיפש", "עוף מפה",
	"stupid", "idiot", "moron", "shut up", "dumb", "jerk",
}

// ThreatPhrases trigger immediate termination, outside strike
// accounting.
var ThreatPhrases = PhraseSet{
	"אהרוג אותך", "אני אהרוג", "אפוצץ", "אשרוף", "אני אפגע בך",
	"תיזהר ממני", "אחסל",
	"i will kill", "i'll kill", "kill you", "blow up", "burn down",
	"i will hurt", "you'll regret",
}

var RefuseProvidePhrases = PhraseSet{
	"לא אגיד", "לא אומר", "לא אגלה", "לא מוכן להגיד", "לא מוכנה להגיד",
	"לא רוצה להגיד", "לא רוצה לומר", "לא אמסור", "לא מוסר",
	"לא עניינך", "זה לא עניינך", "לא מעניין אותך",
	"won't tell", "not telling", "i refuse to say",
	"none of your business",
}

var RefuseRepayPhrases = PhraseSet{
	"לא אחזיר", "לא מתכוון להחזיר", "לא מתכוונת להחזיר",
	"בלי להחזיר", "לא אשלם", "לא מתכוון לשלם",
	"won't pay back", "not paying back", "never repay", "won't repay",
	"without paying back",
}

// RepeatRequestPhrases ask for the question again. Checked before
// refusal detection; a bare "what?" is also a repeat request (see
// IsBareWhat), never rudeness.
var RepeatRequestPhrases = PhraseSet{
	"תחזור על השאלה", "תחזרי על השאלה", "אפשר לחזור", "אפשר שוב",
	"לא שמעתי", "לא הבנתי את השאלה", "מה אמרת", "מה אמרת?",
	"repeat the question", "say that again", "come again",
	"what did you say", "didn't hear",
}

// bareWhatTokens are single-token utterances treated as repeat
// requests.
var bareWhatTokens = map[string]bool{
	"מה": true, "אה": true, "הא": true,
	"what": true, "huh": true, "sorry": true, "eh": true,
}

// IsBareWhat reports whether the whole utterance is a one- or two-token
// "what?" style interjection.
func IsBareWhat(text string) bool {
	tokens := Tokenize(Fold(text))
	if len(tokens) == 0 || len(tokens) > 2 {
		return false
	}
	for _, t := range tokens {
		if !bareWhatTokens[t] {
			return false
		}
	}
	return true
}

// ClarificationPhrases ask why information is needed. Distinct from
// refusal: "why do you need that" is a question, not a no.
var ClarificationPhrases = PhraseSet{
	"למה אתה צריך", "למה את צריכה", "למה צריך", "בשביל מה",
	"למה זה חשוב", "מה זאת אומרת", "למה אתם שואלים", "למה השאלה",
	"why do you need", "what do you mean", "why is that",
	"why are you asking",
}

// =============================================================================
// Domain Keywords
// =============================================================================

var BankingKeywords = PhraseSet{
	"הלוואה", "בנק", "ריבית", "החזר", "החזרים", "תשלום", "תשלומים",
	"משכורת", "הכנסה", "סכום", "כסף", "שקל", "שקלים", "חשבון",
	"loan", "bank", "interest", "repay", "repayment", "payment",
	"income", "salary", "amount", "money", "shekel", "account",
}

var AmountKeywords = PhraseSet{
	"הלוואה", "סכום", "לקחת", "צריך", "צריכה", "מבקש", "מבקשת",
	"loan", "amount", "borrow", "need", "requesting",
}

var IncomeKeywords = PhraseSet{
	"הכנסה", "משכורת", "שכר", "מרוויח", "מרוויחה", "נטו", "ברוטו",
	"בחודש", "לחודש",
	"income", "salary", "earn", "earning", "per month", "monthly",
}

// NoIncomePhrases map to the literal income value 0, which is distinct
// from "could not extract".
var NoIncomePhrases = PhraseSet{
	"אין לי הכנסה", "אין הכנסה", "אין לי משכורת", "בלי הכנסה",
	"לא עובד", "לא עובדת", "מובטל", "מובטלת", "אין לי שום הכנסה",
	"no income", "don't work", "not working", "unemployed",
	"have no income",
}

// =============================================================================
// Purposes
// =============================================================================

// KnownPurposes maps purpose keywords to the canonical purpose label
// stored in the slot.
var KnownPurposes = []struct {
	Keywords PhraseSet
	Label    string
}{
	{PhraseSet{"שיפוץ", "לשפץ", "renovate", "renovation", "remodel"}, "שיפוץ"},
	{PhraseSet{"רכב", "אוטו", "מכונית", "car", "vehicle"}, "רכב"},
	{PhraseSet{"חתונה", "wedding"}, "חתונה"},
	{PhraseSet{"לימודים", "תואר", "שכר לימוד", "studies", "tuition", "degree"}, "לימודים"},
	{PhraseSet{"דירה", "משכנתא", "apartment", "mortgage", "house"}, "דירה"},
	{PhraseSet{"עסק", "העסק", "business"}, "עסק"},
	{PhraseSet{"חופשה", "טיול", "vacation", "trip", "holiday"}, "חופשה"},
	{PhraseSet{"חוב", "חובות", "debt", "debts"}, "כיסוי חובות"},
	{PhraseSet{"רפואי", "ניתוח", "טיפול", "medical", "surgery", "treatment"}, "הוצאה רפואית"},
}

// UnrealisticPurposePhrases: the purpose is extracted then discarded,
// but the signal still fires so the engine can coach.
var UnrealisticPurposePhrases = PhraseSet{
	"טיל", "חללית", "לקנות את הירח", "דרקון", "מכונת זמן",
	"להשתלט על העולם", "אי פרטי",
	"rocket", "spaceship", "buy the moon", "time machine", "dragon",
	"take over the world", "private island",
}

var IllegalPurposePhrases = PhraseSet{
	"סמים", "נשק", "אקדח", "רובה", "לשדוד", "שוד", "הלבנת הון",
	"זיוף", "להבריח",
	"drugs", "weapon", "weapons", "gun", "rob", "robbery",
	"launder", "laundering", "counterfeit", "smuggle",
}

// purposeMarkers introduce a generic purpose clause ("כדי לשפץ",
// "in order to fix the roof").
var purposeMarkers = []string{
	"כדי", "בשביל", "לצורך", "למטרת", "עבור",
	"in order to", "so that", "for the purpose of",
}

// ExtractGenericPurpose captures the clause after a purpose marker,
// requiring at least two content tokens.
//
// Outputs:
//
//	string - The captured purpose phrase, trimmed to at most six tokens.
//	bool - False when no marker is present or the clause is too short.
func ExtractGenericPurpose(text string) (string, bool) {
	folded := Fold(Normalize(text))
	for _, marker := range purposeMarkers {
		idx := strings.Index(folded, marker+" ")
		if idx < 0 {
			continue
		}
		rest := folded[idx+len(marker):]
		tokens := Tokenize(rest)
		if len(tokens) < 2 {
			continue
		}
		if len(tokens) > 6 {
			tokens = tokens[:6]
		}
		return strings.Join(tokens, " "), true
	}
	return "", false
}

// =============================================================================
// Confirmation and Menu Choices
// =============================================================================

var ConfirmYesPhrases = PhraseSet{
	"כן", "מאשר", "מאשרת", "אישור", "בסדר", "סבבה", "אוקיי", "מסכים",
	"מסכימה", "בטח",
	"yes", "i confirm", "confirmed", "ok", "okay", "sure", "agreed",
}

var ConfirmNoPhrases = PhraseSet{
	"לא מאשר", "לא מאשרת", "מסרב", "מסרבת", "לא מסכים", "לא מסכימה",
	"לא רוצה", "בטל", "לא",
	"i decline", "no", "cancel", "not confirming",
}

var RestartChoicePhrases = PhraseSet{
	"1", "להתחיל מחדש", "מחדש", "מההתחלה", "עוד פעם",
	"restart", "start over", "again",
}

var ContinueChoicePhrases = PhraseSet{
	"2", "להמשיך", "המשך", "ממשיכים",
	"continue", "keep going", "go on",
}

var ExitChoicePhrases = PhraseSet{
	"3", "לסיים", "סיום", "ביי", "להתראות", "די",
	"exit", "quit", "goodbye", "bye", "stop",
}

// ResetCommands clear the session unconditionally. "[RESET]" is the
// transport sentinel; the phrases are user-typed equivalents.
var ResetCommands = PhraseSet{
	"[reset]", "אפס", "אפס שיחה", "התחל מחדש", "reset",
}

// IsResetCommand reports whether the entire utterance is a reset
// command (sentinel token or explicit phrase, nothing else).
func IsResetCommand(text string) bool {
	folded := Fold(Normalize(text))
	if folded == "[reset]" {
		return true
	}
	tokens := Tokenize(folded)
	if len(tokens) == 0 || len(tokens) > 2 {
		return false
	}
	return ResetCommands.MatchesAny(folded)
}
