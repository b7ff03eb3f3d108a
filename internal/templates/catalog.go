package templates

// Template keys.
const (
	KeyWelcome                 Key = "welcome"
	KeyInvalidLanguage         Key = "invalid_language"
	KeyAskName                 Key = "ask_name"
	KeyInvalidName             Key = "invalid_name"
	KeyAskDOB                  Key = "ask_dob"
	KeyInvalidDOB              Key = "invalid_dob"
	KeyAskGestational          Key = "ask_gestational"
	KeyInvalidYesNo            Key = "invalid_yes_no"
	KeyAskGestationalWeeks     Key = "ask_gestational_weeks"
	KeyInvalidGestationalWeeks Key = "invalid_gestational_weeks"
	KeyStartingAssessment      Key = "starting_assessment"
	KeyQuestion                Key = "question"
	KeyInvalidAnswer           Key = "invalid_answer"
	KeyAssessmentComplete      Key = "assessment_complete"
	KeyCorrectedAgeNote        Key = "corrected_age_note"
	KeyRestartHint             Key = "restart_hint"
	KeyTransientError          Key = "transient_error"
	KeyPermanentError          Key = "permanent_error"
	KeyHelp                    Key = "help"
	KeyUnsupported             Key = "unsupported"
)

// AnswerCodes are the backend answer codes, index-aligned with the KeyQuestion buttons.
var AnswerCodes = []string{"yes", "sometimes", "no", "not_sure"}

var languageLabels = map[string]string{
	"English": "en",
	"Hindi":   "hi",
	"Marathi": "mr",
	"हिंदी":   "hi",
	"मराठी":   "mr",
}

var (
	languageButtons = map[string][]string{
		"en": {"English", "Hindi", "Marathi"},
	}
	yesNoButtons = map[string][]string{
		"en": {"Yes", "No"},
		"hi": {"हां", "नहीं"},
		"mr": {"होय", "नाही"},
	}
	answerButtons = map[string][]string{
		"en": {"Yes", "Sometimes", "No", "Not Sure"},
		"hi": {"हां", "कभी-कभी", "नहीं", "निश्चित नहीं"},
		"mr": {"होय", "कधीकधी", "नाही", "खात्री नाही"},
	}
)

func builtinEntries() map[Key]entry {
	return map[Key]entry{
		KeyWelcome: {
			text: map[string]string{
				"en": "Welcome to BrainyTots Developmental Assessment!\n\nI'll help you track your child's development with a quick 5-minute assessment. This will help you understand where your child is in their developmental journey.\n\nPlease select your preferred language:",
				"hi": "BrainyTots में आपका स्वागत है!\n\nमैं आपके बच्चे के विकास को ट्रैक करने में मदद करूंगा। यह आपको यह समझने में मदद करेगा कि आपका बच्चा अपनी विकास यात्रा में कहां है।\n\nकृपया अपनी पसंदीदा भाषा चुनें:",
				"mr": "BrainyTots मध्ये आपले स्वागत आहे!\n\nमी तुमच्या मुलाच्या विकासाचा मागोवा घेण्यास मदत करेन। हे तुम्हाला समजण्यास मदत करेल की तुमचे मूल त्यांच्या विकासाच्या प्रवासात कुठे आहे।\n\nकृपया तुमची पसंतीची भाषा निवडा:",
			},
			buttons: languageButtons,
		},
		KeyInvalidLanguage: {
			text: map[string]string{
				"en": "Please choose one of the languages below.",
			},
			buttons: languageButtons,
		},
		KeyAskName: {
			text: map[string]string{
				"en": "Great! What's your child's name?",
				"hi": "बढ़िया! आपके बच्चे का नाम क्या है?",
				"mr": "छान! तुमच्या मुलाचे नाव काय आहे?",
			},
		},
		KeyInvalidName: {
			text: map[string]string{
				"en": "Please send your child's name.",
				"hi": "कृपया अपने बच्चे का नाम भेजें।",
				"mr": "कृपया तुमच्या मुलाचे नाव पाठवा.",
			},
		},
		KeyAskDOB: {
			text: map[string]string{
				"en": "When was {name} born? Please send in DD/MM/YYYY format.\n\nExample: 15/03/2024",
				"hi": "{name} का जन्म कब हुआ था? कृपया DD/MM/YYYY प्रारूप में भेजें।\n\nउदाहरण: 15/03/2024",
				"mr": "{name} चा जन्म कधी झाला? कृपया DD/MM/YYYY स्वरूपात पाठवा.\n\nउदाहरण: 15/03/2024",
			},
		},
		KeyInvalidDOB: {
			text: map[string]string{
				"en": "I couldn't understand that date format. Please send the date in DD/MM/YYYY format.\n\nExample: 15/03/2024",
				"hi": "मैं उस तारीख प्रारूप को समझ नहीं सका। कृपया DD/MM/YYYY प्रारूप में तारीख भेजें।\n\nउदाहरण: 15/03/2024",
				"mr": "मला ते तारीख स्वरूप समजू शकले नाही. कृपया DD/MM/YYYY स्वरूपात तारीख पाठवा.\n\nउदाहरण: 15/03/2024",
			},
		},
		KeyAskGestational: {
			text: map[string]string{
				"en": "Was {name} born prematurely (before 37 weeks of pregnancy)?",
				"hi": "क्या {name} समय से पहले (गर्भावस्था के 37 सप्ताह से पहले) पैदा हुआ था?",
				"mr": "{name} वेळेपूर्वी (गर्भधारणेच्या 37 आठवड्यांपूर्वी) जन्माला आला होता का?",
			},
			buttons: yesNoButtons,
		},
		KeyInvalidYesNo: {
			text: map[string]string{
				"en": "Please answer using one of the buttons below.",
				"hi": "कृपया नीचे दिए गए बटनों में से एक का उपयोग करके उत्तर दें।",
				"mr": "कृपया खालीलपैकी एक बटण वापरून उत्तर द्या.",
			},
			buttons: yesNoButtons,
		},
		KeyAskGestationalWeeks: {
			text: map[string]string{
				"en": "At how many weeks was {name} born? Please send a number between {min} and {max}.\n\nExample: 34",
				"hi": "{name} कितने सप्ताह में पैदा हुआ था? कृपया {min} और {max} के बीच एक संख्या भेजें।\n\nउदाहरण: 34",
				"mr": "{name} किती आठवड्यांनी जन्माला आला? कृपया {min} ते {max} मधील संख्या पाठवा.\n\nउदाहरण: 34",
			},
		},
		KeyInvalidGestationalWeeks: {
			text: map[string]string{
				"en": "Please enter a valid number of weeks (between {min} and {max}).\n\nExample: 34",
				"hi": "कृपया सप्ताहों की एक वैध संख्या दर्ज करें ({min} और {max} के बीच)।\n\nउदाहरण: 34",
				"mr": "कृपया वैध आठवड्यांची संख्या प्रविष्ट करा ({min} ते {max} च्या दरम्यान).\n\nउदाहरण: 34",
			},
		},
		KeyStartingAssessment: {
			text: map[string]string{
				"en": "Perfect! Starting your developmental assessment for {name}...\n\nThis will take about 5 minutes and cover 5 key developmental areas.",
				"hi": "बिल्कुल सही! {name} के लिए आपका विकास मूल्यांकन शुरू हो रहा है...\n\nइसमें लगभग 5 मिनट लगेंगे और 5 मुख्य विकास क्षेत्रों को कवर किया जाएगा।",
				"mr": "परफेक्ट! {name} साठी तुमचे विकासात्मक मूल्यांकन सुरू होत आहे...\n\nयास सुमारे 5 मिनिटे लागतील आणि 5 मुख्य विकास क्षेत्रे समाविष्ट होतील.",
			},
		},
		KeyQuestion: {
			text: map[string]string{
				"en": "Question {current} of ~{total}\n\n{question}",
				"hi": "प्रश्न {current} में से ~{total}\n\n{question}",
				"mr": "प्रश्न {current} पैकी ~{total}\n\n{question}",
			},
			buttons: answerButtons,
		},
		KeyInvalidAnswer: {
			text: map[string]string{
				"en": "Please select one of the options using the buttons.",
				"hi": "कृपया बटनों का उपयोग करके विकल्पों में से एक चुनें।",
				"mr": "कृपया बटणे वापरून पर्यायांपैकी एक निवडा.",
			},
		},
		KeyAssessmentComplete: {
			text: map[string]string{
				"en": "Assessment complete for {name}!\n\nHere's a quick summary:\n- Age: {age_months} months{corrected_note}\n- Questions answered: {total_questions}\n- Overall: {overall_status}\n\nView your detailed results and personalized recommendations here:\n{results_url}\n\nThe report includes domain scores, activities, and toy recommendations tailored for {name}!",
				"hi": "{name} के लिए मूल्यांकन पूर्ण हुआ!\n\nयहाँ एक त्वरित सारांश है:\n- आयु: {age_months} महीने{corrected_note}\n- उत्तर दिए गए प्रश्न: {total_questions}\n- समग्र: {overall_status}\n\nयहां अपने विस्तृत परिणाम और व्यक्तिगत सिफारिशें देखें:\n{results_url}\n\nरिपोर्ट में {name} के लिए अनुकूलित डोमेन स्कोर, गतिविधियाँ और खिलौने की सिफारिशें शामिल हैं!",
				"mr": "{name} साठी मूल्यांकन पूर्ण झाले!\n\nयेथे एक जलद सारांश आहे:\n- वय: {age_months} महिने{corrected_note}\n- उत्तर दिलेले प्रश्न: {total_questions}\n- एकूण: {overall_status}\n\nतुमचे तपशीलवार निकाल आणि वैयक्तिक शिफारशी येथे पहा:\n{results_url}\n\nअहवालात {name} साठी अनुकूलित डोमेन स्कोअर, क्रियाकलाप आणि खेळण्यांच्या शिफारशी समाविष्ट आहेत!",
			},
		},
		KeyCorrectedAgeNote: {
			text: map[string]string{
				"en": " (corrected for prematurity)",
				"hi": " (समयपूर्वता के लिए समायोजित)",
				"mr": " (वेळेपूर्वतेसाठी समायोजित)",
			},
		},
		KeyRestartHint: {
			text: map[string]string{
				"en": "Type 'restart' to start a new assessment.",
				"hi": "नया मूल्यांकन शुरू करने के लिए 'restart' टाइप करें।",
				"mr": "नवीन मूल्यांकन सुरू करण्यासाठी 'restart' टाइप करा.",
			},
		},
		KeyTransientError: {
			text: map[string]string{
				"en": "I'm sorry, I encountered an error. Please try again or type 'restart' to start over.",
				"hi": "मुझे खेद है, मुझे एक त्रुटि का सामना करना पड़ा। कृपया पुनः प्रयास करें या फिर से शुरू करने के लिए 'restart' टाइप करें।",
				"mr": "मला माफ करा, मला एक त्रुटी आली. कृपया पुन्हा प्रयत्न करा किंवा पुन्हा सुरू करण्यासाठी 'restart' टाइप करा.",
			},
		},
		KeyPermanentError: {
			text: map[string]string{
				"en": "Something went wrong with this assessment and it cannot continue. Please type 'restart' to begin again.",
				"hi": "इस मूल्यांकन में कुछ गलत हो गया और यह जारी नहीं रह सकता। कृपया फिर से शुरू करने के लिए 'restart' टाइप करें।",
				"mr": "या मूल्यांकनात काहीतरी चूक झाली आणि ते सुरू ठेवता येत नाही. कृपया पुन्हा सुरू करण्यासाठी 'restart' टाइप करा.",
			},
		},
		KeyHelp: {
			text: map[string]string{
				"en": "BrainyTots Developmental Assessment Help\n\nThis assessment tracks your child's development across 5 key areas:\n- Gross Motor (movement & coordination)\n- Fine Motor (hand skills)\n- Language & Communication\n- Social-Emotional\n- Cognitive/Problem-Solving\n\nCommands:\n- Type 'restart' to start a new assessment\n- Type 'help' to see this message\n\nThe assessment takes about 5 minutes and gives you personalized insights and recommendations.",
				"hi": "BrainyTots विकास मूल्यांकन सहायता\n\nयह मूल्यांकन आपके बच्चे के विकास को 5 मुख्य क्षेत्रों में ट्रैक करता है:\n- सकल मोटर (गति और समन्वय)\n- सूक्ष्म मोटर (हाथ कौशल)\n- भाषा और संचार\n- सामाजिक-भावनात्मक\n- संज्ञानात्मक/समस्या-समाधान\n\nकमांड:\n- नया मूल्यांकन शुरू करने के लिए 'restart' टाइप करें\n- इस संदेश को देखने के लिए 'help' टाइप करें\n\nमूल्यांकन में लगभग 5 मिनट लगते हैं और आपको व्यक्तिगत अंतर्दृष्टि और सिफारिशें देता है।",
				"mr": "BrainyTots विकासात्मक मूल्यांकन मदत\n\nहे मूल्यांकन तुमच्या मुलाच्या विकासाचा 5 मुख्य क्षेत्रांमध्ये मागोवा घेते:\n- स्थूल मोटर (हालचाल आणि समन्वय)\n- सूक्ष्म मोटर (हाताची कौशल्ये)\n- भाषा आणि संप्रेषण\n- सामाजिक-भावनिक\n- संज्ञानात्मक/समस्या-निराकरण\n\nआदेश:\n- नवीन मूल्यांकन सुरू करण्यासाठी 'restart' टाइप करा\n- हा संदेश पाहण्यासाठी 'help' टाइप करा\n\nमूल्यांकन सुमारे 5 मिनिटे घेते आणि तुम्हाला वैयक्तिक अंतर्दृष्टी आणि शिफारशी देते.",
			},
		},
		KeyUnsupported: {
			text: map[string]string{
				"en": "Sorry, I can only read text messages and button replies.",
			},
		},
	}
}
