package meeting

import (
	"net/url"
	"regexp"
	"strings"
)

// Service identifies the provider a meeting link belongs to.
type Service string

const (
	ServiceZoom            Service = "zoom"
	ServiceZoomGov         Service = "zoomgov"
	ServiceMeet            Service = "meet"
	ServiceTeams           Service = "teams"
	ServiceWebex           Service = "webex"
	ServiceJitsi           Service = "jitsi"
	ServiceChime           Service = "chime"
	ServiceRingCentral     Service = "ringcentral"
	ServiceGoToMeeting     Service = "gotomeeting"
	ServiceGoToWebinar     Service = "gotowebinar"
	ServiceBlueJeans       Service = "bluejeans"
	ServiceEightByEight    Service = "8x8"
	ServiceDemio           Service = "demio"
	ServiceJoinMe          Service = "join_me"
	ServiceWhereby         Service = "whereby"
	ServiceUberConference  Service = "uberconference"
	ServiceBlizz           Service = "blizz"
	ServiceTeamViewer      Service = "teamviewer"
	ServiceVSee            Service = "vsee"
	ServiceStarLeaf        Service = "starleaf"
	ServiceGoogleDuo       Service = "duo"
	ServiceVoov            Service = "voov"
	ServiceSkype           Service = "skype"
	ServiceSkype4Biz       Service = "skype4biz"
	ServiceLifesize        Service = "lifesize"
	ServiceWorkplace       Service = "workplace"
	ServiceYouTube         Service = "youtube"
	ServiceVonage          Service = "vonage"
	ServiceAround          Service = "around"
	ServiceJam             Service = "jam"
	ServiceDiscord         Service = "discord"
	ServiceBlackboard      Service = "blackboard"
	ServiceCoScreen        Service = "coscreen"
	ServiceVowel           Service = "vowel"
	ServiceZhumu           Service = "zhumu"
	ServiceLark            Service = "lark"
	ServiceFeishu          Service = "feishu"
	ServiceVimeo           Service = "vimeo"
	ServiceOVice           Service = "ovice"
	ServiceFaceTime        Service = "facetime"
	ServicePop             Service = "pop"
	ServiceChorus          Service = "chorus"
	ServiceGong            Service = "gong"
	ServiceLivestorm       Service = "livestorm"
	ServiceLuma            Service = "luma"
	ServicePreply          Service = "preply"
	ServiceUserZoom        Service = "userzoom"
	ServiceVenue           Service = "venue"
	ServiceTeleparty       Service = "teleparty"
	ServiceSpatial         Service = "spatial"
	ServiceBigBlueButton   Service = "bigbluebutton"
	ServiceSlackHuddle     Service = "slack"
	ServiceReclaim         Service = "reclaim"
	ServiceTuple           Service = "tuple"
	ServiceGather          Service = "gather"
	ServicePumble          Service = "pumble"
	ServiceDoxy            Service = "doxy"
	ServiceCalVideo        Service = "cal_video"
	ServiceLiveKit         Service = "livekit"
	ServiceStreamYard      Service = "streamyard"
	ServiceZencastr        Service = "zencastr"
	ServiceMeetecho        Service = "meetecho"
	ServiceGoBrunch        Service = "gobrunch"
	ServiceDialpad         Service = "dialpad"
	ServiceAmazonConnect   Service = "amazon_connect"
	ServiceNetEaseMeeting  Service = "netease"
	ServiceCircuit         Service = "circuit"
	ServiceSessions        Service = "sessions"
	ServiceButter          Service = "butter"
	ServiceHopin           Service = "hopin"

	// ServiceOther marks a link matched by the user-configured regex.
	ServiceOther Service = "other"
	// ServiceAnyLink marks a plain URL picked up by the generic fallback.
	ServiceAnyLink Service = "any_link"
)

// Link is a detected meeting link.
type Link struct {
	Service Service
	URL     *url.URL
}

// pattern pairs a service with its compiled URL regexp. The registry is
// built once at package init; detection is a linear scan in declaration
// order, so more specific providers come before generic ones.
type pattern struct {
	service Service
	re      *regexp.Regexp
}

var patterns = []pattern{
	{ServiceZoomGov, regexp.MustCompile(`https?://([a-z0-9-.]+)?zoomgov\.com/j/[-a-zA-Z0-9()@:%_+.~#?&=/]+`)},
	{ServiceZoom, regexp.MustCompile(`https?://(?:[a-zA-Z0-9-.]+)?zoom\.(?:us|com|com\.cn)/(?:j|my|w|s)/[-a-zA-Z0-9()@:%_+.~#?&=/]+`)},
	{ServiceMeet, regexp.MustCompile(`https?://meet\.google\.com/(?:_meet/)?[a-z-]+(\?[^\s]*)?`)},
	{ServiceTeams, regexp.MustCompile(`https?://teams\.(?:microsoft|live)\.com/l/meetup-join/[a-zA-Z0-9_%/=\-+.?]+`)},
	{ServiceWebex, regexp.MustCompile(`https?://(?:[A-Za-z0-9-]+\.)?webex\.com(?:/[^\s<>"]*)?/(?:j\.php|MTID=|meet|join)[^\s<>"]*`)},
	{ServiceJitsi, regexp.MustCompile(`https?://meet\.jit\.si/[^\s<>"]+`)},
	{ServiceChime, regexp.MustCompile(`https?://([a-z0-9-.]+)?chime\.aws/[0-9]+`)},
	{ServiceRingCentral, regexp.MustCompile(`https?://([a-z0-9.]+)?ringcentral\.com/[^\s]+`)},
	{ServiceGoToMeeting, regexp.MustCompile(`https?://([a-z0-9.]+)?gotomeeting\.com/[^\s]+`)},
	{ServiceGoToWebinar, regexp.MustCompile(`https?://([a-z0-9.]+)?gotowebinar\.com/[^\s]+`)},
	{ServiceBlueJeans, regexp.MustCompile(`https?://([a-z0-9.]+)?bluejeans\.com/[^\s]+`)},
	{ServiceEightByEight, regexp.MustCompile(`https?://8x8\.vc/[^\s]+`)},
	{ServiceDemio, regexp.MustCompile(`https?://event\.demio\.com/[^\s]+`)},
	{ServiceJoinMe, regexp.MustCompile(`https?://join\.me/[^\s]+`)},
	{ServiceWhereby, regexp.MustCompile(`https?://whereby\.com/[^\s]+`)},
	{ServiceUberConference, regexp.MustCompile(`https?://uberconference\.com/[^\s]+`)},
	{ServiceBlizz, regexp.MustCompile(`https?://go\.blizz\.com/[^\s]+`)},
	{ServiceTeamViewer, regexp.MustCompile(`https?://go\.teamviewer\.com/[^\s]+`)},
	{ServiceVSee, regexp.MustCompile(`https?://vsee\.com/[^\s]+`)},
	{ServiceStarLeaf, regexp.MustCompile(`https?://meet\.starleaf\.com/[^\s]+`)},
	{ServiceGoogleDuo, regexp.MustCompile(`https?://duo\.app\.goo\.gl/[^\s]+`)},
	{ServiceVoov, regexp.MustCompile(`https?://voovmeeting\.com/[^\s]+`)},
	{ServiceSkype4Biz, regexp.MustCompile(`https?://meet\.lync\.com/[^\s]+`)},
	{ServiceSkype, regexp.MustCompile(`https?://join\.skype\.com/[^\s]+`)},
	{ServiceLifesize, regexp.MustCompile(`https?://call\.lifesizecloud\.com/[^\s]+`)},
	{ServiceWorkplace, regexp.MustCompile(`https?://([a-z0-9-.]+)?workplace\.com/groupcall/[^\s]+`)},
	{ServiceYouTube, regexp.MustCompile(`https?://((www|m)\.)?(youtube\.com|youtu\.be)/[^\s]+`)},
	{ServiceVonage, regexp.MustCompile(`https?://meetings\.vonage\.com/[0-9]{9}`)},
	{ServiceAround, regexp.MustCompile(`https?://(meet\.)?around\.co/[^\s]+`)},
	{ServiceJam, regexp.MustCompile(`https?://jam\.systems/[^\s]+`)},
	{ServiceDiscord, regexp.MustCompile(`(http|https|discord)://(www\.)?(canary\.)?discord(app)?\.([a-zA-Z]{2,})(.+)?`)},
	{ServiceBlackboard, regexp.MustCompile(`https?://us\.bbcollab\.com/[^\s]+`)},
	{ServiceCoScreen, regexp.MustCompile(`https?://join\.coscreen\.co/[^\s]+`)},
	{ServiceVowel, regexp.MustCompile(`https?://([a-z0-9.]+)?vowel\.com/#/g/[^\s]+`)},
	{ServiceZhumu, regexp.MustCompile(`https?://welink\.zhumu\.com/j/[0-9]+\?pwd=[a-zA-Z0-9]+`)},
	{ServiceLark, regexp.MustCompile(`https?://vc\.larksuite\.com/j/[0-9]+`)},
	{ServiceFeishu, regexp.MustCompile(`https?://vc\.feishu\.cn/j/[0-9]+`)},
	{ServiceVimeo, regexp.MustCompile(`https?://vimeo\.com/(showcase|event)/[0-9]+`)},
	{ServiceOVice, regexp.MustCompile(`https?://([a-z0-9-.]+)?ovice\.in/[^\s]*`)},
	{ServiceFaceTime, regexp.MustCompile(`https?://facetime\.apple\.com/join[^\s]*`)},
	{ServicePop, regexp.MustCompile(`https?://pop\.com/j/[0-9-]+`)},
	{ServiceChorus, regexp.MustCompile(`https?://go\.chorus\.ai/[^\s]+`)},
	{ServiceGong, regexp.MustCompile(`https?://([a-z0-9-.]+)?join\.gong\.io/[^\s]+`)},
	{ServiceLivestorm, regexp.MustCompile(`https?://app\.livestorm\.com/p/[^\s]+`)},
	{ServiceLuma, regexp.MustCompile(`https?://lu\.ma/join/[^\s]+`)},
	{ServicePreply, regexp.MustCompile(`https?://preply\.com/[^\s]+`)},
	{ServiceUserZoom, regexp.MustCompile(`https?://go\.userzoom\.com/participate/[a-z0-9-]+`)},
	{ServiceVenue, regexp.MustCompile(`https?://app\.venue\.live/app/[^\s]+`)},
	{ServiceTeleparty, regexp.MustCompile(`https?://teleparty\.com/join/[^\s]+`)},
	{ServiceSpatial, regexp.MustCompile(`https?://spatial\.chat/s/[^\s]+`)},
	{ServiceBigBlueButton, regexp.MustCompile(`https?://([a-z0-9-.]+)?/bigbluebutton/api/join\?[^\s]+`)},
	{ServiceSlackHuddle, regexp.MustCompile(`https?://app\.slack\.com/huddle/[a-zA-Z0-9./]+`)},
	{ServiceReclaim, regexp.MustCompile(`https?://reclaim\.ai/z/[a-zA-Z0-9./]+`)},
	{ServiceTuple, regexp.MustCompile(`https?://tuple\.app/c/[^\s]+`)},
	{ServiceGather, regexp.MustCompile(`https?://app\.gather\.town/app/[^\s]+`)},
	{ServicePumble, regexp.MustCompile(`https?://meet\.pumble\.com/[a-z-]+`)},
	{ServiceDoxy, regexp.MustCompile(`https?://([a-z0-9-.]+)?doxy\.me/[^\s]+`)},
	{ServiceCalVideo, regexp.MustCompile(`https?://app\.cal\.com/video/[A-Za-z0-9./]+`)},
	{ServiceLiveKit, regexp.MustCompile(`https?://meet[a-zA-Z0-9.]*\.livekit\.io/rooms/[a-zA-Z0-9-#]+`)},
	{ServiceStreamYard, regexp.MustCompile(`https?://streamyard\.com/[a-z0-9]+`)},
	{ServiceZencastr, regexp.MustCompile(`https?://zencastr\.com/[^\s]+`)},
	{ServiceMeetecho, regexp.MustCompile(`https?://meetings\.conf\.meetecho\.com/[^\s]+`)},
	{ServiceGoBrunch, regexp.MustCompile(`https?://gobrunch\.com/events/[^\s]+`)},
	{ServiceDialpad, regexp.MustCompile(`https?://meetings\.dialpad\.com/[^\s]+`)},
	{ServiceAmazonConnect, regexp.MustCompile(`https?://([a-z0-9-.]+)?my\.connect\.aws/[^\s]+`)},
	{ServiceNetEaseMeeting, regexp.MustCompile(`https?://meeting\.163\.com/invite/[^\s]+`)},
	{ServiceCircuit, regexp.MustCompile(`https?://([a-z0-9-.]+)?circuit\.com/guest\?[^\s]+`)},
	{ServiceSessions, regexp.MustCompile(`https?://app\.sessions\.us/session/[^\s]+`)},
	{ServiceButter, regexp.MustCompile(`https?://app\.butter\.us/[^\s]+`)},
	{ServiceHopin, regexp.MustCompile(`https?://(app|events)\.hopin\.(com|to)/[^\s]+`)},
}

// anyLink matches a bare http(s) URL for the generic fallback.
var anyLink = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// Options tunes detection beyond the built-in provider registry.
type Options struct {
	// CustomRegex, when non-nil, is tried after the known providers and
	// tags its match as ServiceOther.
	CustomRegex *regexp.Regexp
	// DetectAnyLink enables the generic URL fallback (ServiceAnyLink)
	// when neither a provider nor the custom regex matched.
	DetectAnyLink bool
	// AccountEmail, when non-empty, is appended to Google Meet links as
	// the authuser query parameter so the browser picks the right
	// signed-in account.
	AccountEmail string
}

// Detect scans the given fields in order and returns the first meeting
// link found, or nil. The field order is significant: callers pass
// location first because it is more authoritative than a notes blob.
func Detect(fields []string, opts Options) *Link {
	for _, field := range fields {
		if field == "" {
			continue
		}
		if l := detectIn(field, opts); l != nil {
			return l
		}
	}
	return nil
}

func detectIn(s string, opts Options) *Link {
	for _, p := range patterns {
		if m := p.re.FindString(s); m != "" {
			return makeLink(p.service, m, opts)
		}
	}
	if opts.CustomRegex != nil {
		if m := opts.CustomRegex.FindString(s); m != "" {
			return makeLink(ServiceOther, m, opts)
		}
	}
	if opts.DetectAnyLink {
		if m := anyLink.FindString(s); m != "" {
			return makeLink(ServiceAnyLink, m, opts)
		}
	}
	return nil
}

func makeLink(service Service, raw string, opts Options) *Link {
	u, err := url.Parse(strings.TrimRight(raw, ".,;"))
	if err != nil {
		return nil
	}
	if service == ServiceMeet && opts.AccountEmail != "" {
		q := u.Query()
		q.Set("authuser", opts.AccountEmail)
		u.RawQuery = q.Encode()
	}
	return &Link{Service: service, URL: u}
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]+>`)
	htmlAnchor = regexp.MustCompile(`<a[^>]+href="([^"]+)"[^>]*>`)
)

// StripHTML removes markup from a notes blob so URLs embedded in anchor
// tags become visible to the link regexps. Anchor hrefs are preserved.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	s = htmlAnchor.ReplaceAllString(s, " $1 ")
	s = htmlTag.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return s
}
