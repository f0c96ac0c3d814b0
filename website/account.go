package website

import (
	"net/http"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/thoas/go-funk"
)

func isAdmin(user *dataobjects.User) bool {
	return user != nil && user.Email != "" && funk.ContainsString(config.Admins, user.Email)
}

// deleteAccount deletes the account of the client together with all of its
// data and ends the session
func deleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := user.Delete(config.Node); err != nil {
		internalError(w, err)
		return
	}
	// the flag went away with the user row
	config.Store.Invalidate(user.ID)
	if err := config.Accounts.Logout(r, w); err != nil {
		config.Log.Println(err)
	}
	config.Log.Printf("Deleted account %s\n", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// regenerateFeedToken invalidates the calendar and deadline feed links
func regenerateFeedToken(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := user.RegenerateFeedToken(config.Node); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, pagePaths[gate.PageDashboard], http.StatusSeeOther)
}

// adminPage serves the administration overview
func adminPage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !isAdmin(user) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	p := struct {
		pageCommons
		Users          int
		OnboardedUsers int
		Stats          AdminStats
	}{
		pageCommons: initPageCommons(r, "Administration", user),
	}

	if r.Method == http.MethodPost && r.ParseForm() == nil {
		switch r.PostForm.Get("action") {
		case "reloadTemplates":
			if err := ReloadTemplates(); err != nil {
				p.Message = err.Error()
				p.IsError = true
			} else {
				p.Message = "Templates reloaded"
			}
		case "forgetOnboarding":
			target, err := dataobjects.GetUser(config.Node, r.PostForm.Get("userID"))
			if err != nil {
				p.Message = err.Error()
				p.IsError = true
				break
			}
			config.Store.Invalidate(target.ID)
			p.Message = "Cached onboarding flag dropped for " + target.DisplayName
		}
	}

	var err error
	p.Users, p.OnboardedUsers, err = dataobjects.CountUsers(config.Node)
	if err != nil {
		internalError(w, err)
		return
	}
	if config.Stats != nil {
		p.Stats = config.Stats()
	}
	p.Stats.OnboardingCached = config.Store.Len()

	renderPage(w, "admin.html", p)
}
